// Package keystore provides persistence for SIM key records and the
// transaction log, with pluggable backends selected by URI.
//
// The store replaces the single global session slot of the original design
// with a keyed store: records are indexed by their public session key id
// for authenticated lookups, and by (owner, device) for provisioning, so
// arbitrarily many independent sessions coexist.
//
// # Backends
//
//   - memory:// — mutex-guarded maps, the default for development and tests
//   - file:///var/lib/aanf/ — JSON records on the local file system
//   - redis://host:6379/0?prefix=aanf — shared store for multi-instance
//     deployments
//   - vault://vault.example.com:8200/secret/aanf?token=... — records in
//     HashiCorp Vault KV v2
//
// # Invariants
//
// Every backend enforces, atomically at the single-record level:
//
//   - at most one active record per (owner, device) pair — Insert fails
//     with ErrRecordExists when an active record already claims the device
//   - session key ids are unique among live records
//   - deactivation is a logical delete; records are kept for audit and
//     never reactivated
//
// The memory and file backends serialize through a process-local mutex;
// the redis backend claims the device index with SETNX so concurrent
// inserts from multiple instances still elect a single winner.
//
// Transaction records are append-only. Backends expose no update or delete
// operation for them.
package keystore
