// Package txsign implements canonical transaction encoding and HMAC signing.
//
// Independently computed signatures only match when both sides hash the
// same bytes, so the package pins one canonical byte form for every signed
// payload: object keys sorted lexicographically, no whitespace after ':'
// or ',', and amounts normalized to exactly one decimal place before
// encoding. Encode and EncodeReceipt are the only producers of signed
// bytes in the repository; handlers never marshal payloads for signing
// themselves.
//
// Signing is HMAC-SHA256 keyed with the application function key in its
// ASCII hex form (see the byte-encoding contract in package interfaces).
// Verification compares digests with crypto/hmac.Equal — constant time,
// by contract.
//
// Whether a failed verification rejects the transaction is a deployment
// decision modeled as the Signer's Enforcement policy. The permissive
// policy exists for development against unsigned clients; it marks every
// accepted-but-unverified transaction on the returned Verdict so the
// caller can log and meter it. It is never the default.
package txsign
