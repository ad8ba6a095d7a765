package txsign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// Enforcement selects how signature verification failures are treated.
// It is a constructor-time policy parameter, never an ambient toggle read
// from the environment.
type Enforcement int

const (
	// EnforcementStrict rejects transactions whose signature does not
	// verify. This is the only acceptable production setting.
	EnforcementStrict Enforcement = iota

	// EnforcementPermissiveLogged accepts transactions despite a failed
	// or missing signature but reports the bypass on the verdict so
	// callers can log and count it. Development use only.
	EnforcementPermissiveLogged
)

// String returns the policy name.
func (e Enforcement) String() string {
	switch e {
	case EnforcementStrict:
		return "strict"
	case EnforcementPermissiveLogged:
		return "permissive-logged"
	default:
		return "unknown"
	}
}

// Sign computes the transaction signature over canonically encoded payload
// bytes:
//
//	signature = hex(HMAC-SHA256(key = kaf, msg = payloadBytes))
//
// Pure function, no side effects.
func Sign(payload []byte, kaf interfaces.ApplicationFunctionKey) (string, error) {
	if kaf == "" {
		return "", fmt.Errorf("%w: application function key must not be empty", interfaces.ErrInvalidInput)
	}

	mac := hmac.New(sha256.New, kaf.KeyBytes())
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares it in constant time.
// The comparison never short-circuits on the first differing byte; this is
// a security invariant of the protocol, not an optimization detail.
func Verify(payload []byte, kaf interfaces.ApplicationFunctionKey, signature string) (bool, error) {
	expected, err := Sign(payload, kaf)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// Verdict reports the outcome of a policy-aware signature check.
type Verdict struct {
	// Valid is true when the signature verified.
	Valid bool

	// Bypassed is true when verification failed but the permissive policy
	// let the transaction proceed. Callers must surface bypasses loudly;
	// a bypass is never indistinguishable from success.
	Bypassed bool
}

// Signer applies the configured enforcement policy to signature checks.
type Signer struct {
	enforcement Enforcement
}

// NewSigner creates a signer with the given enforcement policy.
func NewSigner(enforcement Enforcement) *Signer {
	return &Signer{enforcement: enforcement}
}

// Enforcement returns the configured policy.
func (s *Signer) Enforcement() Enforcement {
	return s.enforcement
}

// Check verifies a supplied signature over payload bytes under the
// configured policy. A failed verification returns ErrInvalidSignature
// under the strict policy, or a Bypassed verdict under the permissive
// one. A missing signature follows the same split: strict rejects it,
// permissive admits the unsigned request as a bypass.
func (s *Signer) Check(payload []byte, kaf interfaces.ApplicationFunctionKey, signature string) (Verdict, error) {
	if signature == "" {
		if s.enforcement == EnforcementPermissiveLogged {
			return Verdict{Valid: false, Bypassed: true}, nil
		}
		return Verdict{}, fmt.Errorf("%w: signature must not be empty", interfaces.ErrInvalidInput)
	}

	ok, err := Verify(payload, kaf, signature)
	if err != nil {
		return Verdict{}, err
	}
	if ok {
		return Verdict{Valid: true}, nil
	}

	if s.enforcement == EnforcementPermissiveLogged {
		return Verdict{Valid: false, Bypassed: true}, nil
	}
	return Verdict{}, interfaces.ErrInvalidSignature
}
