// Package akma implements the AKMA-style key hierarchy for the banking backend.
//
// The package turns a device-bound root secret into the full credential
// hierarchy as pure functions: identical inputs always produce identical
// outputs, nothing is cached, and no function logs or touches shared state.
//
// # Key Hierarchy
//
// Keys are derived in three steps:
//
//	RootSecret (Ki)          per-device long-term secret, 32 random bytes hex-encoded
//	  └─ SessionAuthKey      KAKMA = HMAC-SHA256(key=Ki, msg=deviceID)
//	       ├─ SessionKeyID   AKID  = HMAC-SHA256(key=KAKMA, msg=salt)[:16], public
//	       └─ AppFunctionKey KAF   = SHA256(KAKMA ∥ functionID ∥ domain constant)
//
// The session auth key and application function keys are recomputed on
// demand and never persisted outside the SIM key record; the session key id
// is the only value handed to callers.
//
// # Byte-Encoding Contract
//
// Every derivation input is the UTF-8 encoding of its string form. Root
// secrets and derived keys circulate as lowercase hex strings and are used
// as HMAC keys in exactly that ASCII form. This matches the client-side
// derivation byte for byte and must not be changed to decoded-byte keying.
//
// # Interop Constraint
//
// The KAF step deliberately uses SHA-256 over string concatenation with the
// named constant KAFDomainSeparatorV1 rather than HKDF. Clients in a
// constrained environment compute the same value independently, so the
// concatenation order and the exact literal are part of the wire contract.
//
// # Simulation
//
// Real SIM/carrier integration is out of scope. SimulateRootSecret stands
// in for carrier SIM material by deriving the root secret deterministically
// from the device identity alone (HKDF-SHA256). The derivation is stable
// across authentications; the challenge only enters the response
// computation, never the hierarchy, so a reused session's stored keys
// always match what the device re-derives.
package akma
