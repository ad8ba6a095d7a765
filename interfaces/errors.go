package interfaces

import "errors"

var (
	// ErrInvalidInput is returned when a derivation or protocol argument is
	// malformed or missing. It is a local precondition violation and is
	// never silently defaulted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUntrustedCarrier is returned when a device reports a carrier
	// outside the configured allow-list. Policy rejection; not retryable.
	ErrUntrustedCarrier = errors.New("untrusted carrier")

	// ErrInvalidOrExpiredKey is returned when a session key id does not
	// resolve to an active record. The caller must re-provision.
	ErrInvalidOrExpiredKey = errors.New("invalid or expired session key")

	// ErrInvalidSignature is returned when a transaction signature does not
	// verify against the canonically encoded payload.
	ErrInvalidSignature = errors.New("invalid transaction signature")

	// ErrChallengeMismatch is returned when a challenge response does not
	// match the expected value for the device's root secret.
	ErrChallengeMismatch = errors.New("challenge response mismatch")

	// ErrRecordExists is returned by a key store when an insert would
	// violate the one-active-record-per-device invariant or reuse a live
	// session key id.
	ErrRecordExists = errors.New("conflicting key record exists")

	// ErrRecordNotFound is returned by a key store when no record matches
	// the lookup.
	ErrRecordNotFound = errors.New("key record not found")

	// ErrStoreUnavailable is returned when a store backend is not
	// accessible. The core treats it as fatal to the current call.
	ErrStoreUnavailable = errors.New("key store unavailable")

	// ErrInvalidLocationURI is returned when a store location URI is
	// malformed or names an unsupported scheme.
	ErrInvalidLocationURI = errors.New("invalid store location URI")
)
