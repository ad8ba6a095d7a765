// Package main (cmd/simclient) implements the device-side client for the
// AANF banking backend.
//
// The client derives the key hierarchy locally from its device identity —
// the same derivation the backend performs — so the two sides agree on
// every key without any key material crossing the wire. Transactions are
// signed with the derived transactions function key and the backend's
// receipt signature is verified before the result is trusted.
//
// Example usage:
//
//	simclient --owner=alice --device=device-1 authenticate
//	simclient --owner=alice --device=device-1 transact --amount=10.5
//	simclient --owner=alice --device=device-1 history
//	simclient --owner=alice --device=device-1 logout
package main
