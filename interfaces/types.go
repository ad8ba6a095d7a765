// Package interfaces defines the core interfaces and types for the AANF banking backend.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OwnerID identifies the account holder that owns SIM key records and
// transactions. It is an opaque identifier assigned by the account system.
type OwnerID string

// NewOwnerID creates an owner identifier with validation.
func NewOwnerID(id string) (OwnerID, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("owner id must not be empty")
	}
	return OwnerID(id), nil
}

// String returns the owner identifier as a string.
func (id OwnerID) String() string {
	return string(id)
}

// DeviceID identifies a device within an owner's account. The value is
// supplied by the transport layer (the client hashes its hardware identity
// before sending it) and is treated as an opaque UTF-8 string.
type DeviceID string

// NewDeviceID creates a device identifier with validation.
func NewDeviceID(id string) (DeviceID, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("device id must not be empty")
	}
	return DeviceID(id), nil
}

// String returns the device identifier as a string.
func (id DeviceID) String() string {
	return string(id)
}

// Carrier names the mobile network operator a device reports. Trust decisions
// are made against a configured allow-list, never against the value itself.
type Carrier string

// String returns the carrier name as a string.
func (c Carrier) String() string {
	return string(c)
}

// Normalized returns the carrier name lowercased for allow-list comparison.
func (c Carrier) Normalized() Carrier {
	return Carrier(strings.ToLower(strings.TrimSpace(string(c))))
}

// RootSecret is the long-term per-device secret (Ki), hex-encoded.
// It is created once on first provisioning, never transmitted afterwards,
// and immutable for the lifetime of its record.
//
// The byte-encoding contract for all derivations is the UTF-8 encoding of
// the lowercase hex string, not the decoded bytes. Both sides of the
// protocol key their HMACs with the ASCII hex form.
type RootSecret string

// RootSecretBytes is the raw length of a root secret before hex encoding.
const RootSecretBytes = 32

// NewRootSecretFromHex creates a root secret from a hex string with validation.
func NewRootSecretFromHex(s string) (RootSecret, error) {
	if len(s) != RootSecretBytes*2 {
		return "", fmt.Errorf("invalid root secret length: must be %d hex characters", RootSecretBytes*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid root secret encoding: %w", err)
	}
	return RootSecret(strings.ToLower(s)), nil
}

// String returns the hex form of the root secret.
func (s RootSecret) String() string {
	return string(s)
}

// KeyBytes returns the bytes used to key derivations: the UTF-8 encoding
// of the hex string.
func (s RootSecret) KeyBytes() []byte {
	return []byte(s)
}

// SessionAuthKey is the session authentication key (KAKMA) derived from the
// root secret and device identity, hex-encoded. It is recomputed, never
// updated.
type SessionAuthKey string

// String returns the hex form of the session auth key.
func (k SessionAuthKey) String() string {
	return string(k)
}

// KeyBytes returns the bytes used to key derivations: the UTF-8 encoding
// of the hex string.
func (k SessionAuthKey) KeyBytes() []byte {
	return []byte(k)
}

// SessionKeyID is the public session identifier (AKID) handed to the caller
// as a bearer token. It is the 16-character hex truncation of an HMAC over
// the session auth key and a salt.
type SessionKeyID string

// SessionKeyIDLength is the hex length of a session key identifier.
const SessionKeyIDLength = 16

// NewSessionKeyID creates a session key identifier with validation.
func NewSessionKeyID(s string) (SessionKeyID, error) {
	if len(s) != SessionKeyIDLength {
		return "", fmt.Errorf("invalid session key id length: must be %d characters", SessionKeyIDLength)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid session key id encoding: %w", err)
	}
	return SessionKeyID(s), nil
}

// String returns the session key identifier as a string.
func (id SessionKeyID) String() string {
	return string(id)
}

// FunctionID names an application function for which a scoped key is derived
// (e.g. "transactions"). Per-function keys are derived on demand and never
// persisted.
type FunctionID string

// Application functions known to the backend.
const (
	// FunctionTransactions scopes keys used to sign and verify transactions.
	FunctionTransactions FunctionID = "transactions"

	// FunctionAuthentication scopes keys used for authentication exchanges.
	FunctionAuthentication FunctionID = "authentication"
)

// String returns the function identifier as a string.
func (id FunctionID) String() string {
	return string(id)
}

// ApplicationFunctionKey is a per-function signing key (KAF) derived from the
// session auth key and a function identifier, hex-encoded.
type ApplicationFunctionKey string

// String returns the hex form of the application function key.
func (k ApplicationFunctionKey) String() string {
	return string(k)
}

// KeyBytes returns the bytes used to key signatures: the UTF-8 encoding of
// the hex string.
func (k ApplicationFunctionKey) KeyBytes() []byte {
	return []byte(k)
}

// SimKeyRecord holds the per-device key material and its lifecycle state.
// A record is created on first successful provisioning for an (owner, device)
// pair, looked up by session key id on every authenticated call, and
// deactivated on logout. Deactivation is a logical delete: the record is
// retained for audit and never reactivated.
type SimKeyRecord struct {
	OwnerID        OwnerID        `json:"owner_id"`
	DeviceID       DeviceID       `json:"device_id"`
	Carrier        Carrier        `json:"carrier"`
	RootSecret     RootSecret     `json:"root_secret"`
	SessionAuthKey SessionAuthKey `json:"session_auth_key"`
	SessionKeyID   SessionKeyID   `json:"session_key_id"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TransactionMethod names the flow a transaction was authorized through.
type TransactionMethod string

// Supported transaction methods.
const (
	// MethodAANF marks transactions authorized with a derived signing key.
	MethodAANF TransactionMethod = "AANF"

	// MethodTraditional marks transactions authorized with a bearer token.
	MethodTraditional TransactionMethod = "Traditional"
)

// String returns the method name as a string.
func (m TransactionMethod) String() string {
	return string(m)
}

// TransactionRecord is an append-only record of an accepted transaction.
// It is created once and never mutated or deleted. Signature is empty for
// flows that do not sign.
type TransactionRecord struct {
	ID        string            `json:"id"`
	OwnerID   OwnerID           `json:"owner_id"`
	Amount    float64           `json:"amount"`
	Method    TransactionMethod `json:"method"`
	Timestamp time.Time         `json:"timestamp"`
	Signature string            `json:"signature,omitempty"`
}
