package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/akmasim/aanf-banking-backend/client"
	"github.com/akmasim/aanf-banking-backend/interfaces"
)

var flagServerAddr = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "banking backend address",
}
var flagOwner = &cli.StringFlag{
	Name:     "owner",
	Required: true,
	Usage:    "account owner identifier",
}
var flagDevice = &cli.StringFlag{
	Name:     "device",
	Required: true,
	Usage:    "device identifier",
}
var flagCarrier = &cli.StringFlag{
	Name:  "carrier",
	Value: "airtel",
	Usage: "carrier network name",
}
var flagModel = &cli.StringFlag{
	Name:  "model",
	Value: "simclient",
	Usage: "device model reported during authentication",
}
var flagChallenge = &cli.BoolFlag{
	Name:  "challenge",
	Value: false,
	Usage: "send a challenge-response possession proof",
}
var flagAmount = &cli.Float64Flag{
	Name:  "amount",
	Value: 10.0,
	Usage: "transaction amount",
}

func newDeviceClient(cCtx *cli.Context) *client.Client {
	return client.New(client.Config{
		BaseURL:      cCtx.String(flagServerAddr.Name),
		OwnerID:      interfaces.OwnerID(cCtx.String(flagOwner.Name)),
		DeviceID:     interfaces.DeviceID(cCtx.String(flagDevice.Name)),
		Carrier:      interfaces.Carrier(cCtx.String(flagCarrier.Name)),
		Model:        cCtx.String(flagModel.Name),
		UseChallenge: cCtx.Bool(flagChallenge.Name),
	})
}

func main() {
	app := &cli.App{
		Name:  "simclient",
		Usage: "Device-side client for the AANF banking backend",
		Flags: []cli.Flag{
			flagServerAddr,
			flagOwner,
			flagDevice,
			flagCarrier,
			flagModel,
			flagChallenge,
		},
		Commands: []*cli.Command{
			{
				Name:        "authenticate",
				Description: "Establish a session and print the session key id",
				Action: func(cCtx *cli.Context) error {
					c := newDeviceClient(cCtx)
					reused, err := c.Authenticate(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Printf("akid=%s reused=%v\n", c.SessionKeyID(), reused)
					return nil
				},
			},
			{
				Name:        "transact",
				Description: "Sign and submit a transaction, verifying the server receipt",
				Flags:       []cli.Flag{flagAmount},
				Action: func(cCtx *cli.Context) error {
					c := newDeviceClient(cCtx)
					if _, err := c.Authenticate(cCtx.Context); err != nil {
						return err
					}
					receipt, err := c.SendTransaction(cCtx.Context, cCtx.Float64(flagAmount.Name))
					if err != nil {
						return err
					}
					fmt.Printf("id=%s amount=%.1f status=%s\n", receipt.ID, receipt.Amount, receipt.Status)
					return nil
				},
			},
			{
				Name:        "history",
				Description: "Print the owner's transactions, oldest first",
				Action: func(cCtx *cli.Context) error {
					c := newDeviceClient(cCtx)
					if _, err := c.Authenticate(cCtx.Context); err != nil {
						return err
					}
					records, err := c.History(cCtx.Context)
					if err != nil {
						return err
					}
					for _, r := range records {
						fmt.Printf("%s %s %.1f %s\n", r.Timestamp.Format("2006-01-02T15:04:05Z07:00"), r.ID, r.Amount, r.Method)
					}
					return nil
				},
			},
			{
				Name:        "logout",
				Description: "Deactivate the device's session",
				Action: func(cCtx *cli.Context) error {
					c := newDeviceClient(cCtx)
					if _, err := c.Authenticate(cCtx.Context); err != nil {
						return err
					}
					if err := c.Logout(cCtx.Context); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
