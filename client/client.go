// Package client is the device-side implementation of the authentication
// and transaction protocol. It derives the same key hierarchy as the
// backend from the same inputs, without either side ever sending key
// material over the wire; only the public session key id circulates.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/akmasim/aanf-banking-backend/akma"
	"github.com/akmasim/aanf-banking-backend/interfaces"
	"github.com/akmasim/aanf-banking-backend/txsign"
)

// Header names shared with the backend.
const (
	sessionKeyHeader           = "X-AKMA-Key-ID"
	transactionSignatureHeader = "X-Transaction-Signature"
)

// Config identifies the device the client acts for.
type Config struct {
	BaseURL  string
	OwnerID  interfaces.OwnerID
	DeviceID interfaces.DeviceID
	Carrier  interfaces.Carrier
	Model    string

	// UseChallenge sends a challenge-response possession proof with the
	// authentication request.
	UseChallenge bool

	Timeout time.Duration
}

// Client holds the device's derived keys and session state. It is not safe
// for concurrent use; a device drives one session at a time.
type Client struct {
	cfg  Config
	http *resty.Client

	rootSecret interfaces.RootSecret
	authKey    interfaces.SessionAuthKey
	sessionID  interfaces.SessionKeyID
}

// New creates a client for the given device identity.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{cfg: cfg, http: httpClient}
}

// SessionKeyID returns the current session's public key id.
func (c *Client) SessionKeyID() interfaces.SessionKeyID {
	return c.sessionID
}

type authenticateResponse struct {
	SessionKeyID interfaces.SessionKeyID `json:"akid"`
	Reused       bool                    `json:"reused"`
}

type apiError struct {
	Error string `json:"error"`
}

func responseError(resp *resty.Response) error {
	var parsed apiError
	if err := json.Unmarshal(resp.Body(), &parsed); err == nil && parsed.Error != "" {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode(), parsed.Error)
	}
	return fmt.Errorf("backend returned %d", resp.StatusCode())
}

// Authenticate establishes a session. The root secret and session auth key
// are derived locally; the backend independently arrives at the same
// values. Reused reports whether the backend answered with an existing
// active session.
func (c *Client) Authenticate(ctx context.Context) (reused bool, err error) {
	body := map[string]string{
		"owner_id":  c.cfg.OwnerID.String(),
		"device_id": c.cfg.DeviceID.String(),
		"carrier":   c.cfg.Carrier.String(),
		"model":     c.cfg.Model,
	}

	rootSecret, err := akma.SimulateRootSecret(c.cfg.DeviceID)
	if err != nil {
		return false, err
	}

	// The challenge nonce is fresh per attempt and feeds only the response,
	// never the key derivation: the backend may answer with an existing
	// session whose keys were derived under an earlier nonce.
	if c.cfg.UseChallenge {
		challenge := uuid.New().String()
		response, err := akma.ChallengeResponse(rootSecret, challenge)
		if err != nil {
			return false, err
		}
		body["challenge"] = challenge
		body["challenge_response"] = response
	}

	var parsed authenticateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&parsed).
		Post("/api/aanf/authenticate")
	if err != nil {
		return false, fmt.Errorf("authenticate request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, responseError(resp)
	}

	authKey, err := akma.DeriveSessionAuthKey(rootSecret, c.cfg.DeviceID)
	if err != nil {
		return false, err
	}

	c.rootSecret = rootSecret
	c.authKey = authKey
	c.sessionID = parsed.SessionKeyID
	return parsed.Reused, nil
}

// Receipt is the backend's signed confirmation of a transaction.
type Receipt struct {
	Amount float64 `json:"amount"`
	ID     string  `json:"id"`
	Status string  `json:"status"`
}

// SendTransaction signs the amount with the locally derived transactions
// function key, submits it, and verifies the backend's signature over the
// receipt before trusting it.
func (c *Client) SendTransaction(ctx context.Context, amount float64) (*Receipt, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("%w: not authenticated", interfaces.ErrInvalidOrExpiredKey)
	}

	kaf, err := akma.DeriveApplicationFunctionKey(c.authKey, interfaces.FunctionTransactions)
	if err != nil {
		return nil, err
	}
	payload, err := txsign.Encode(txsign.Payload{Amount: amount})
	if err != nil {
		return nil, err
	}
	signature, err := txsign.Sign(payload, kaf)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(sessionKeyHeader, c.sessionID.String()).
		SetHeader(transactionSignatureHeader, signature).
		SetBody(map[string]float64{"amount": amount}).
		Post("/api/aanf/transaction")
	if err != nil {
		return nil, fmt.Errorf("transaction request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, responseError(resp)
	}

	// The response body is the canonical receipt; the header signs it.
	receiptBytes := resp.Body()
	ok, err := txsign.Verify(receiptBytes, kaf, resp.Header().Get(transactionSignatureHeader))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: server receipt signature did not verify", interfaces.ErrInvalidSignature)
	}

	var receipt Receipt
	if err := json.Unmarshal(receiptBytes, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &receipt, nil
}

// Logout deactivates the session on the backend and clears local state.
func (c *Client) Logout(ctx context.Context) error {
	if c.sessionID == "" {
		return fmt.Errorf("%w: not authenticated", interfaces.ErrInvalidOrExpiredKey)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(sessionKeyHeader, c.sessionID.String()).
		Post("/api/aanf/logout")
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return responseError(resp)
	}

	c.rootSecret = ""
	c.authKey = ""
	c.sessionID = ""
	return nil
}

// History fetches the owner's transactions, oldest first.
func (c *Client) History(ctx context.Context) ([]interfaces.TransactionRecord, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("%w: not authenticated", interfaces.ErrInvalidOrExpiredKey)
	}

	var parsed struct {
		Transactions []interfaces.TransactionRecord `json:"transactions"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(sessionKeyHeader, c.sessionID.String()).
		SetResult(&parsed).
		Get("/api/aanf/transactions")
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, responseError(resp)
	}
	return parsed.Transactions, nil
}
