// Package httpserver exposes the authentication and transaction flows over
// HTTP.
//
// The AANF flow under /api/aanf carries its session identity in the
// X-AKMA-Key-ID header and transaction signatures in
// X-Transaction-Signature; responses to signed transactions carry a server
// signature in the same header over the canonical receipt, so authenticity
// works in both directions. The traditional flow under /api/traditional
// implements the password/OTP/JWT comparison path.
//
// Handlers translate between HTTP and the provisioner: they parse, map the
// error taxonomy onto status codes, count metrics, and log. Permissive
// signature bypasses are logged at warning level and counted; they are
// never silent.
package httpserver
