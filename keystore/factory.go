package keystore

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// StoreFactory creates store backends from location URIs.
type StoreFactory struct {
	log *slog.Logger
}

// NewStoreFactory creates a new factory instance that can create store backends.
func NewStoreFactory(logger *slog.Logger) *StoreFactory {
	return &StoreFactory{log: logger}
}

// StoreFor creates a store backend from a location URI.
// The URI format should be [scheme]://host[:port][/path][?params]
//
// Supported schemes:
//   - memory:// - In-process store, for development and tests
//   - file:// - Local filesystem store
//   - redis:// - Redis, for multi-instance deployments
//   - vault:// - HashiCorp Vault KV v2
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StoreFactory) StoreFor(location interfaces.StoreLocation) (interfaces.Store, error) {
	switch location.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return sf.createFileStore(location)
	case "redis":
		return sf.createRedisStore(location)
	case "vault":
		return sf.createVaultStore(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// createFileStore creates a file system store backend.
// URI format: file:///var/lib/aanf/ or file://./relative/path/
func (sf *StoreFactory) createFileStore(location interfaces.StoreLocation) (interfaces.Store, error) {
	sf.log.Debug("Creating file store", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewFileStore(path, sf.log)
}

// createRedisStore creates a Redis store backend.
// URI format: redis://host:port/0?prefix=aanf&password=...
// The path selects the logical database number.
func (sf *StoreFactory) createRedisStore(location interfaces.StoreLocation) (interfaces.Store, error) {
	sf.log.Debug("Creating redis store", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing host in redis URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	db := 0
	if dbPath := strings.Trim(location.Path, "/"); dbPath != "" {
		parsed, err := strconv.Atoi(dbPath)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid redis database %q", interfaces.ErrInvalidLocationURI, dbPath)
		}
		db = parsed
	}

	return NewRedisStore(location.Host, location.GetParam("password"), db, location.GetParam("prefix"), sf.log), nil
}

// createVaultStore creates a Vault store backend.
// URI format: vault://vault.example.com:8200/secret/aanf?token=...&scheme=https
// The first path segment is the KV v2 mount, the rest the base path.
func (sf *StoreFactory) createVaultStore(location interfaces.StoreLocation) (interfaces.Store, error) {
	sf.log.Debug("Creating vault store", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing host in vault URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	token := location.GetParam("token")
	if token == "" {
		return nil, fmt.Errorf("%w: missing token parameter in vault URI", interfaces.ErrInvalidLocationURI)
	}

	mount, base, _ := strings.Cut(strings.Trim(location.Path, "/"), "/")
	if mount == "" {
		return nil, fmt.Errorf("%w: missing mount path in vault URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}
	if base == "" {
		base = "aanf"
	}

	scheme := location.GetParam("scheme")
	if scheme == "" {
		scheme = "https"
	}

	return NewVaultStore(scheme+"://"+location.Host, token, mount, base, sf.log)
}
