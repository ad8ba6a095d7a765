package httpserver

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// TraditionalConfig carries the demo credentials and token settings for
// the password/OTP comparison flow.
type TraditionalConfig struct {
	Username  string
	Password  string
	OTP       string
	JWTSecret []byte
	TokenTTL  time.Duration
}

// DefaultTraditionalConfig returns the fixed demo credentials. The flow
// exists as a comparison baseline for the signed AANF flow, not as a real
// credential system.
func DefaultTraditionalConfig(secret []byte) TraditionalConfig {
	return TraditionalConfig{
		Username:  "testuser",
		Password:  "123456",
		OTP:       "000000",
		JWTSecret: secret,
		TokenTTL:  time.Hour,
	}
}

// TraditionalAuth implements the traditional session: password check, OTP
// verification issuing an HS256 JWT, and bearer-token authorization by
// equality against the last issued token.
type TraditionalAuth struct {
	cfg TraditionalConfig

	mu           sync.Mutex
	currentToken string
}

// NewTraditionalAuth creates the traditional flow with the given config.
func NewTraditionalAuth(cfg TraditionalConfig) *TraditionalAuth {
	return &TraditionalAuth{cfg: cfg}
}

// Login checks the username/password pair.
func (a *TraditionalAuth) Login(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	return userOK && passOK
}

// IssueToken verifies the OTP and issues a fresh session token. Issuing a
// new token invalidates the previous one.
func (a *TraditionalAuth) IssueToken(otp string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(otp), []byte(a.cfg.OTP)) != 1 {
		return "", fmt.Errorf("%w: invalid OTP", interfaces.ErrInvalidInput)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   a.cfg.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	a.mu.Lock()
	a.currentToken = token
	a.mu.Unlock()
	return token, nil
}

// Authorize checks a presented bearer token against the last issued one.
func (a *TraditionalAuth) Authorize(token string) bool {
	a.mu.Lock()
	current := a.currentToken
	a.mu.Unlock()

	if current == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(token)) == 1
}

type traditionalLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type traditionalOTPRequest struct {
	OTP string `json:"otp"`
}

// HandleTraditionalLogin processes password logins.
//
// URL format: POST /api/traditional/login
func (h *Handler) HandleTraditionalLogin(w http.ResponseWriter, r *http.Request) {
	var req traditionalLoginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if !h.traditional.Login(req.Username, req.Password) {
		h.writeErrorStatus(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to your number"})
}

// HandleTraditionalVerifyOTP verifies the OTP and returns a session token.
//
// URL format: POST /api/traditional/verify-otp
func (h *Handler) HandleTraditionalVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req traditionalOTPRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	token, err := h.traditional.IssueToken(req.OTP)
	if err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, "invalid OTP")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// HandleTraditionalTransaction records a transaction authorized by the
// bearer token. No signature covers the amount; that asymmetry against the
// AANF flow is the point of keeping this flow around.
//
// URL format: POST /api/traditional/transaction
func (h *Handler) HandleTraditionalTransaction(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !h.traditional.Authorize(token) {
		h.writeErrorStatus(w, http.StatusForbidden, "unauthorized or expired session")
		return
	}

	var req transactionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	record, err := h.provisioner.RecordTraditionalTransaction(r.Context(), interfaces.OwnerID(h.traditional.cfg.Username), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.metrics.TransactionsLegacy.Inc()
	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Transaction of %.1f successful via traditional flow", record.Amount),
		"id":      record.ID,
	})
}
