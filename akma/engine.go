package akma

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// KAFDomainSeparatorV1 is the domain-separation constant appended when
// deriving application function keys. The concatenation order and this
// exact literal are part of the wire contract: clients derive the same key
// independently and both sides must agree byte for byte. Changing it is a
// protocol version bump, not a refactor.
const KAFDomainSeparatorV1 = "AANF Banking App KAF Derivation"

// rootSecretSimInfo is the HKDF info string for the simulated root-secret
// derivation. It is internal to this implementation; only the KAF
// derivation above carries an interop constraint.
const rootSecretSimInfo = "aanf-banking/root-secret-sim/v1"

// GenerateRootSecret creates a fresh random root secret.
func GenerateRootSecret() (interfaces.RootSecret, error) {
	buf := make([]byte, interfaces.RootSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate root secret: %w", err)
	}
	return interfaces.RootSecret(hex.EncodeToString(buf)), nil
}

// SimulateRootSecret derives a root secret deterministically from a device
// identity. In production the root secret would come from carrier SIM
// material; the simulation needs a value both the device and the backend
// can reproduce. The derivation depends on nothing but the device identity:
// a per-authentication input (such as a challenge nonce) must never feed
// it, or a device re-authenticating into a reused session would derive a
// hierarchy that no longer matches the stored record.
func SimulateRootSecret(device interfaces.DeviceID) (interfaces.RootSecret, error) {
	if device == "" {
		return "", fmt.Errorf("%w: device id must not be empty", interfaces.ErrInvalidInput)
	}

	kdf := hkdf.New(sha256.New, []byte(device), nil, []byte(rootSecretSimInfo))
	buf := make([]byte, interfaces.RootSecretBytes)
	if _, err := io.ReadFull(kdf, buf); err != nil {
		return "", fmt.Errorf("failed to derive root secret: %w", err)
	}
	return interfaces.RootSecret(hex.EncodeToString(buf)), nil
}

// DeriveSessionAuthKey derives the session authentication key (KAKMA) from
// a root secret and device identity:
//
//	KAKMA = hex(HMAC-SHA256(key = rootSecret, msg = deviceID))
//
// The key is the UTF-8 encoding of the root secret's hex string; see the
// byte-encoding contract on interfaces.RootSecret.
func DeriveSessionAuthKey(secret interfaces.RootSecret, device interfaces.DeviceID) (interfaces.SessionAuthKey, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: root secret must not be empty", interfaces.ErrInvalidInput)
	}
	if device == "" {
		return "", fmt.Errorf("%w: device id must not be empty", interfaces.ErrInvalidInput)
	}

	mac := hmac.New(sha256.New, secret.KeyBytes())
	mac.Write([]byte(device))
	return interfaces.SessionAuthKey(hex.EncodeToString(mac.Sum(nil))), nil
}

// DeriveSessionKeyID derives the public session key identifier (AKID) from
// a session auth key and a salt:
//
//	AKID = hex(HMAC-SHA256(key = sessionAuthKey, msg = salt))[:16]
//
// The salt is a monotonically distinguishing value (the provisioner uses
// the current unix time plus a retry counter). It provides uniqueness, not
// secrecy: the design tolerates it being attacker-observable.
func DeriveSessionKeyID(key interfaces.SessionAuthKey, salt string) (interfaces.SessionKeyID, error) {
	if key == "" {
		return "", fmt.Errorf("%w: session auth key must not be empty", interfaces.ErrInvalidInput)
	}

	mac := hmac.New(sha256.New, key.KeyBytes())
	mac.Write([]byte(salt))
	digest := hex.EncodeToString(mac.Sum(nil))
	return interfaces.SessionKeyID(digest[:interfaces.SessionKeyIDLength]), nil
}

// DeriveApplicationFunctionKey derives a per-function signing key (KAF):
//
//	KAF = hex(SHA256(sessionAuthKey ∥ functionID ∥ KAFDomainSeparatorV1))
//
// SHA-256 over concatenation, not HKDF: the constrained client environment
// computes the same value from the same strings, so this is a hard interop
// constraint rather than a cryptographic recommendation. Substituting HKDF
// here breaks every existing caller.
func DeriveApplicationFunctionKey(key interfaces.SessionAuthKey, function interfaces.FunctionID) (interfaces.ApplicationFunctionKey, error) {
	if key == "" {
		return "", fmt.Errorf("%w: session auth key must not be empty", interfaces.ErrInvalidInput)
	}
	if function == "" {
		return "", fmt.Errorf("%w: function id must not be empty", interfaces.ErrInvalidInput)
	}

	digest := sha256.Sum256([]byte(key.String() + function.String() + KAFDomainSeparatorV1))
	return interfaces.ApplicationFunctionKey(hex.EncodeToString(digest[:])), nil
}

// ChallengeResponse computes the expected response for a challenge:
//
//	response = hex(SHA256(rootSecret ∥ ":" ∥ challenge))
func ChallengeResponse(secret interfaces.RootSecret, challenge string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: root secret must not be empty", interfaces.ErrInvalidInput)
	}
	if challenge == "" {
		return "", fmt.Errorf("%w: challenge must not be empty", interfaces.ErrInvalidInput)
	}

	digest := sha256.Sum256([]byte(secret.String() + ":" + challenge))
	return hex.EncodeToString(digest[:]), nil
}

// VerifyChallengeResponse checks a presented response against the expected
// value in constant time.
func VerifyChallengeResponse(secret interfaces.RootSecret, challenge, response string) (bool, error) {
	expected, err := ChallengeResponse(secret, challenge)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(response)), nil
}
