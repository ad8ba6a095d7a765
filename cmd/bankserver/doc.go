// Package main (cmd/bankserver) implements the AANF banking backend server.
//
// The server provides HTTP endpoints for credential-based device
// authentication, signed transaction authorization, logout, and transaction
// history, plus a traditional password/OTP flow kept as a comparison
// baseline. Session records persist in a pluggable key store selected by
// URI: in-memory, local files, Redis for multi-instance deployments, or
// HashiCorp Vault.
//
// Signature enforcement is a startup decision. The default strict policy
// rejects transactions whose signature does not verify; the
// permissive-logged policy accepts them but logs and counts every bypass,
// and exists for development against unfinished clients only.
//
// The server implements graceful shutdown on termination signals
// (SIGINT/SIGTERM) and supports health checks, Prometheus metrics on a
// dedicated listener, and optional profiling endpoints.
//
// Example usage:
//
//	bankserver --listen-addr=0.0.0.0:8080 \
//	    --store=redis://localhost:6379/0?prefix=aanf \
//	    --traditional-jwt-secret=dev-secret \
//	    --trusted-carrier=airtel --trusted-carrier=jio
package main
