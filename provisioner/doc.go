// Package provisioner orchestrates the session lifecycle: carrier trust
// gating, optional challenge verification, key provisioning with reuse,
// logout, and transaction authorization.
//
// The provisioner owns the policy decisions; the akma package computes, the
// keystore package persists, and the httpserver package translates. None of
// the operations here log — callers surface outcomes, including permissive
// signature bypasses, which are reported on the result and never silent.
//
// Provisioning for a given (owner, device) pair is serialized through a
// keyed lock, and every store backend additionally enforces the
// one-active-record-per-device invariant atomically, so concurrent
// authentication requests for the same device converge on a single session
// no matter how many server instances race.
package provisioner
