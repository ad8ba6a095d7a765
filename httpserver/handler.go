package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/akmasim/aanf-banking-backend/common"
	"github.com/akmasim/aanf-banking-backend/interfaces"
	"github.com/akmasim/aanf-banking-backend/metrics"
	"github.com/akmasim/aanf-banking-backend/provisioner"
	"github.com/akmasim/aanf-banking-backend/txsign"
)

// Header constants used in HTTP requests and responses.
const (
	// SessionKeyHeader carries the public session key id. It acts as a
	// bearer credential for the AANF endpoints.
	SessionKeyHeader = "X-AKMA-Key-ID"

	// TransactionSignatureHeader carries the client signature on requests
	// and the server signature over the canonical receipt on responses.
	TransactionSignatureHeader = "X-Transaction-Signature"

	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024
)

// Handler processes HTTP requests for the banking backend. It translates
// between the wire and the provisioner: parsing, status mapping, metrics,
// and logging happen here and nowhere below.
type Handler struct {
	provisioner *provisioner.Provisioner
	traditional *TraditionalAuth
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewHandler creates a new HTTP request handler.
//
// Parameters:
//   - prov: authentication protocol and transaction authorization
//   - traditional: password/OTP/JWT comparison flow
//   - log: structured logger for operational insights
func NewHandler(prov *provisioner.Provisioner, traditional *TraditionalAuth, log *slog.Logger) *Handler {
	return &Handler{
		provisioner: prov,
		traditional: traditional,
		// Replaced with the served registry when attached to a server.
		metrics: metrics.NewMetrics(common.PackageName, prometheus.NewRegistry()),
		log:     log,
	}
}

type authenticateRequest struct {
	OwnerID           string             `json:"owner_id"`
	DeviceID          string             `json:"device_id"`
	Carrier           interfaces.Carrier `json:"carrier"`
	Model             string             `json:"model"`
	Challenge         string             `json:"challenge,omitempty"`
	ChallengeResponse string             `json:"challenge_response,omitempty"`
}

type authenticateResponse struct {
	SessionKeyID interfaces.SessionKeyID `json:"akid"`
	OwnerID      interfaces.OwnerID      `json:"owner_id"`
	DeviceID     interfaces.DeviceID     `json:"device_id"`
	Reused       bool                    `json:"reused"`
	CreatedAt    time.Time               `json:"created_at"`
}

type transactionRequest struct {
	Amount float64 `json:"amount"`
}

type transactionHistoryResponse struct {
	Transactions []interfaces.TransactionRecord `json:"transactions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleAuthenticate processes authentication requests from devices.
//
// URL format: POST /api/aanf/authenticate
//
// Request body: JSON with owner_id, device_id, carrier, model and an
// optional challenge/challenge_response pair.
//
// Response: JSON with the session key id and whether an existing session
// was reused. No other key material ever leaves the server.
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	owner, err := interfaces.NewOwnerID(req.OwnerID)
	if err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	device, err := interfaces.NewDeviceID(req.DeviceID)
	if err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.provisioner.Authenticate(r.Context(), provisioner.AuthRequest{
		OwnerID:           owner,
		DeviceID:          device,
		Carrier:           req.Carrier,
		Model:             req.Model,
		Challenge:         req.Challenge,
		ChallengeResponse: req.ChallengeResponse,
	})
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrUntrustedCarrier):
			h.metrics.CarrierRejections.Inc()
		case errors.Is(err, interfaces.ErrChallengeMismatch):
			h.metrics.ChallengeFailures.Inc()
		}
		h.writeError(w, r, err)
		return
	}

	if result.Reused {
		h.metrics.SessionsReused.Inc()
	} else {
		h.metrics.SessionsProvisioned.Inc()
		h.log.Info("Session provisioned",
			slog.String("device", device.String()),
			slog.String("carrier", result.Record.Carrier.String()),
			slog.String("akid", result.Record.SessionKeyID.String()))
	}

	h.writeJSON(w, http.StatusOK, authenticateResponse{
		SessionKeyID: result.Record.SessionKeyID,
		OwnerID:      result.Record.OwnerID,
		DeviceID:     result.Record.DeviceID,
		Reused:       result.Reused,
		CreatedAt:    result.Record.CreatedAt,
	})
}

// HandleTransaction processes signed transaction requests.
//
// URL format: POST /api/aanf/transaction
// Required headers:
//   - X-AKMA-Key-ID: session key id of an active session
//   - X-Transaction-Signature: HMAC over the canonical payload
//
// Request body: JSON with the amount.
//
// Response: the canonical receipt bytes, with the server's signature over
// them in X-Transaction-Signature.
func (h *Handler) HandleTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.provisioner.AuthorizeTransaction(r.Context(), id, req.Amount, r.Header.Get(TransactionSignatureHeader))
	if err != nil {
		if errors.Is(err, interfaces.ErrInvalidSignature) {
			h.metrics.SignatureFailures.Inc()
			h.log.Warn("Transaction signature rejected", slog.String("akid", id.String()))
		}
		h.writeError(w, r, err)
		return
	}

	if result.Verdict.Bypassed {
		h.metrics.SignatureBypasses.Inc()
		h.log.Warn("SIGNATURE BYPASSED by permissive policy",
			slog.String("akid", id.String()),
			slog.String("transaction", result.Record.ID))
	}
	h.metrics.TransactionsAANF.Inc()

	receiptBytes, err := txsign.EncodeReceipt(result.Receipt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(TransactionSignatureHeader, result.ReceiptSignature)
	w.WriteHeader(http.StatusOK)
	w.Write(receiptBytes)
}

// HandleLogout deactivates the session named by the X-AKMA-Key-ID header.
// The transition is terminal; the device must authenticate again.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	if err := h.provisioner.Logout(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.SessionsLoggedOut.Inc()
	h.log.Info("Session logged out", slog.String("akid", id.String()))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// HandleTransactionHistory returns the owner's transactions, oldest first.
//
// URL format: GET /api/aanf/transactions with the X-AKMA-Key-ID header.
func (h *Handler) HandleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	records, err := h.provisioner.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []interfaces.TransactionRecord{}
	}
	h.writeJSON(w, http.StatusOK, transactionHistoryResponse{Transactions: records})
}

// sessionKey parses and validates the session key id header. A missing or
// malformed id is rejected with 403 before it reaches a store lookup; only
// well-formed ids are worth a round trip.
func (h *Handler) sessionKey(w http.ResponseWriter, r *http.Request) (interfaces.SessionKeyID, bool) {
	raw := r.Header.Get(SessionKeyHeader)
	if raw == "" {
		h.writeErrorStatus(w, http.StatusForbidden, "missing "+SessionKeyHeader+" header")
		return "", false
	}

	id, err := interfaces.NewSessionKeyID(raw)
	if err != nil {
		h.writeErrorStatus(w, http.StatusForbidden, err.Error())
		return "", false
	}
	return id, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrUntrustedCarrier),
		errors.Is(err, interfaces.ErrChallengeMismatch),
		errors.Is(err, interfaces.ErrInvalidOrExpiredKey):
		status = http.StatusForbidden
	case errors.Is(err, interfaces.ErrInvalidSignature),
		errors.Is(err, interfaces.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, interfaces.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, slog.String("path", r.URL.Path))
	}
	h.writeErrorStatus(w, status, err.Error())
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
