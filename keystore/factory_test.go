package keystore

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

func TestStoreFactorySchemes(t *testing.T) {
	factory := NewStoreFactory(slog.Default())

	t.Run("memory", func(t *testing.T) {
		loc, err := interfaces.NewStoreLocation("memory://")
		require.NoError(t, err)
		store, err := factory.StoreFor(loc)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("file", func(t *testing.T) {
		loc, err := interfaces.NewStoreLocation("file://" + filepath.ToSlash(t.TempDir()))
		require.NoError(t, err)
		store, err := factory.StoreFor(loc)
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		loc, err := interfaces.NewStoreLocation("redis://localhost:6379/2?prefix=aanf")
		require.NoError(t, err)
		store, err := factory.StoreFor(loc)
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, store)
		assert.Equal(t, "redis-2", store.Name())
	})

	t.Run("vault", func(t *testing.T) {
		loc, err := interfaces.NewStoreLocation("vault://vault.example.com:8200/secret/aanf?token=dev-token")
		require.NoError(t, err)
		store, err := factory.StoreFor(loc)
		require.NoError(t, err)
		assert.IsType(t, &VaultStore{}, store)
	})
}

func TestStoreFactoryInvalidURIs(t *testing.T) {
	factory := NewStoreFactory(slog.Default())

	_, err := interfaces.NewStoreLocation("s3://bucket/keys")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	for name, uri := range map[string]string{
		"file without path":   "file://",
		"redis without host":  "redis:///0",
		"redis bad database":  "redis://localhost:6379/not-a-number",
		"vault without token": "vault://vault.example.com:8200/secret/aanf",
		"vault without mount": "vault://vault.example.com:8200/?token=dev-token",
	} {
		t.Run(name, func(t *testing.T) {
			loc, err := interfaces.NewStoreLocation(uri)
			require.NoError(t, err)
			_, err = factory.StoreFor(loc)
			assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
		})
	}
}
