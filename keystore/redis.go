package keystore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// RedisStore persists records in Redis so multiple backend instances can
// share one session space. Layout under the configured prefix:
//
//	<prefix>:key:<akid>            key record, JSON
//	<prefix>:device:<owner>:<h>    active-device index, value is the akid
//	<prefix>:tx:<owner>            transaction log, JSON list
//
// The device index is claimed with SETNX, which makes concurrent
// provisioning inserts from independent instances elect a single winner.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(addr, password string, db int, prefix string, log *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "aanf"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client, prefix: prefix, log: log}
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string, log *slog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "aanf"
	}
	return &RedisStore{client: client, prefix: prefix, log: log}
}

func (s *RedisStore) recordKey(id interfaces.SessionKeyID) string {
	return s.prefix + ":key:" + id.String()
}

func (s *RedisStore) deviceKey(owner interfaces.OwnerID, device interfaces.DeviceID) string {
	digest := sha256.Sum256([]byte(device))
	return s.prefix + ":device:" + owner.String() + ":" + fmt.Sprintf("%x", digest[:8])
}

func (s *RedisStore) transactionsKey(owner interfaces.OwnerID) string {
	return s.prefix + ":tx:" + owner.String()
}

func (s *RedisStore) getRecord(ctx context.Context, id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	var record interfaces.SimKeyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode key record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) setRecord(ctx context.Context, record *interfaces.SimKeyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode key record: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey(record.SessionKeyID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// FindActiveByDevice returns the active record for an (owner, device) pair.
func (s *RedisStore) FindActiveByDevice(ctx context.Context, owner interfaces.OwnerID, device interfaces.DeviceID) (*interfaces.SimKeyRecord, error) {
	id, err := s.client.Get(ctx, s.deviceKey(owner, device)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	record, err := s.getRecord(ctx, interfaces.SessionKeyID(id))
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	return record, nil
}

// FindActiveByID returns the active record for a session key id.
func (s *RedisStore) FindActiveByID(ctx context.Context, id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	return record, nil
}

// Insert persists a new active record. The SETNX claim on the device index
// is the serialization point for concurrent provisioning.
func (s *RedisStore) Insert(ctx context.Context, record *interfaces.SimKeyRecord) error {
	exists, err := s.client.Exists(ctx, s.recordKey(record.SessionKeyID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: session key id %s already known", interfaces.ErrRecordExists, record.SessionKeyID)
	}

	claimed, err := s.client.SetNX(ctx, s.deviceKey(record.OwnerID, record.DeviceID), record.SessionKeyID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if !claimed {
		return fmt.Errorf("%w: device already has an active record", interfaces.ErrRecordExists)
	}

	if err := s.setRecord(ctx, record); err != nil {
		// Release the claim so the device is not wedged by a half insert.
		s.client.Del(ctx, s.deviceKey(record.OwnerID, record.DeviceID))
		return err
	}
	return nil
}

// Deactivate transitions a record to inactive and releases its device claim.
func (s *RedisStore) Deactivate(ctx context.Context, id interfaces.SessionKeyID) error {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if !record.Active {
		return interfaces.ErrRecordNotFound
	}

	record.Active = false
	if err := s.setRecord(ctx, record); err != nil {
		return err
	}

	deviceKey := s.deviceKey(record.OwnerID, record.DeviceID)
	current, err := s.client.Get(ctx, deviceKey).Result()
	if err == nil && current == id.String() {
		if err := s.client.Del(ctx, deviceKey).Err(); err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Append records an accepted transaction on the owner's list.
func (s *RedisStore) Append(ctx context.Context, record *interfaces.TransactionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode transaction record: %w", err)
	}
	if err := s.client.RPush(ctx, s.transactionsKey(record.OwnerID), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// ByOwner returns the transactions recorded for an owner, oldest first.
func (s *RedisStore) ByOwner(ctx context.Context, owner interfaces.OwnerID) ([]interfaces.TransactionRecord, error) {
	entries, err := s.client.LRange(ctx, s.transactionsKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	records := make([]interfaces.TransactionRecord, 0, len(entries))
	for _, entry := range entries {
		var record interfaces.TransactionRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			return nil, fmt.Errorf("failed to decode transaction record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Name returns an identifier for logging.
func (s *RedisStore) Name() string {
	return "redis-" + strconv.Itoa(s.client.Options().DB)
}
