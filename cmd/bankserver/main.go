package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/akmasim/aanf-banking-backend/cmd/flags"
	"github.com/akmasim/aanf-banking-backend/httpserver"
	"github.com/akmasim/aanf-banking-backend/interfaces"
	"github.com/akmasim/aanf-banking-backend/keystore"
	"github.com/akmasim/aanf-banking-backend/provisioner"
	"github.com/akmasim/aanf-banking-backend/txsign"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.StoreFlag,
	flags.EnforcementFlag,
	flags.TrustedCarriersFlag,
	flags.RequireChallengeFlag,
	flags.JWTSecretFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "bankserver",
		Usage: "Serve the AANF banking API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			enforcement := txsign.EnforcementStrict
			switch cCtx.String(flags.EnforcementFlag.Name) {
			case "strict":
			case "permissive-logged":
				enforcement = txsign.EnforcementPermissiveLogged
				logger.Warn("Signature enforcement is PERMISSIVE; failed signatures will be accepted and logged")
			default:
				return fmt.Errorf("invalid signature-enforcement: %s", cCtx.String(flags.EnforcementFlag.Name))
			}

			location, err := interfaces.NewStoreLocation(cCtx.String(flags.StoreFlag.Name))
			if err != nil {
				logger.Error("Invalid store location", "err", err)
				return err
			}
			store, err := keystore.NewStoreFactory(logger).StoreFor(location)
			if err != nil {
				logger.Error("Failed to create store", "err", err)
				return err
			}
			logger.Info("Key store ready", "backend", store.Name())

			var carriers []interfaces.Carrier
			for _, c := range cCtx.StringSlice(flags.TrustedCarriersFlag.Name) {
				carriers = append(carriers, interfaces.Carrier(c))
			}

			prov := provisioner.NewProvisioner(store, txsign.NewSigner(enforcement), provisioner.Config{
				TrustedCarriers:  carriers,
				RequireChallenge: cCtx.Bool(flags.RequireChallengeFlag.Name),
			})

			traditional := httpserver.NewTraditionalAuth(httpserver.DefaultTraditionalConfig(
				[]byte(cCtx.String(flags.JWTSecretFlag.Name))))

			handler := httpserver.NewHandler(prov, traditional, logger)

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "enforcement", enforcement.String())
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
