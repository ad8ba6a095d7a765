package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// StoreLocation represents a URI selecting a key store backend.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Backend scheme
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStoreLocation creates a new store location from a URI string with validation.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "memory", "file", "redis", "vault":
		// Valid scheme
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// KeyStore persists SIM key records. Implementations must enforce two
// invariants atomically at the single-record level:
//
//   - at most one active record per (owner, device) pair
//   - session key ids never collide among live records
//
// Insert fails with ErrRecordExists when either would be violated, which
// lets concurrent provisioning attempts race safely: exactly one wins.
type KeyStore interface {
	// FindActiveByDevice returns the active record for an (owner, device)
	// pair, or ErrRecordNotFound.
	FindActiveByDevice(ctx context.Context, owner OwnerID, device DeviceID) (*SimKeyRecord, error)

	// FindActiveByID returns the active record for a session key id, or
	// ErrRecordNotFound. Inactive records are never returned.
	FindActiveByID(ctx context.Context, id SessionKeyID) (*SimKeyRecord, error)

	// Insert persists a new active record.
	Insert(ctx context.Context, record *SimKeyRecord) error

	// Deactivate transitions the record for a session key id to inactive.
	// The transition is irreversible; the record is retained for audit.
	Deactivate(ctx context.Context, id SessionKeyID) error

	// Name returns an identifier for logging.
	Name() string
}

// TransactionLog is the append-only record of accepted transactions.
type TransactionLog interface {
	// Append records an accepted transaction. Records are never mutated
	// or deleted afterwards.
	Append(ctx context.Context, record *TransactionRecord) error

	// ByOwner returns the transactions recorded for an owner, oldest first.
	ByOwner(ctx context.Context, owner OwnerID) ([]TransactionRecord, error)
}

// Store aggregates the persistence surface a backend must provide.
type Store interface {
	KeyStore
	TransactionLog
}

// StoreFactory creates store backends from location URIs.
type StoreFactory interface {
	// StoreFor creates a backend from a URI.
	// Supports memory://, file://, redis://, vault://
	StoreFor(location StoreLocation) (Store, error)
}
