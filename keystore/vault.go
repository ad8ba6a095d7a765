package keystore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// VaultStore persists records in HashiCorp Vault using the KV v2 API,
// keeping long-term root secrets inside a secrets manager rather than on
// application disks. Layout under <mount>/data/<base>:
//
//	keys/<akid>       key record, JSON in the "record" field
//	devices/<h>       active-device index, akid in the "akid" field
//	tx/<owner-hash>   transaction log, JSON array in the "records" field
type VaultStore struct {
	client    *vault.Client
	mountPath string
	basePath  string
	log       *slog.Logger
}

// NewVaultStore creates a Vault-backed store authenticated with the given
// token.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - token: Vault token with read/write access to the mount
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - basePath: path within the mount (e.g. "aanf")
//   - log: structured logger for operational insights
func NewVaultStore(address, token, mountPath, basePath string, log *slog.Logger) (*VaultStore, error) {
	config := vault.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(token)

	mountPath = strings.TrimSuffix(mountPath, "/")
	basePath = strings.Trim(basePath, "/")

	return &VaultStore{
		client:    client,
		mountPath: mountPath,
		basePath:  basePath,
		log:       log,
	}, nil
}

func (s *VaultStore) dataPath(parts ...string) string {
	return s.mountPath + "/data/" + s.basePath + "/" + strings.Join(parts, "/")
}

func (s *VaultStore) deviceHash(owner interfaces.OwnerID, device interfaces.DeviceID) string {
	digest := sha256.Sum256([]byte(owner.String() + "\x00" + device.String()))
	return fmt.Sprintf("%x", digest)
}

func (s *VaultStore) ownerHash(owner interfaces.OwnerID) string {
	digest := sha256.Sum256([]byte(owner.String()))
	return fmt.Sprintf("%x", digest)
}

// readField reads a single string field from a KV v2 secret. The nested
// "data" wrapping is a property of the KV v2 API.
func (s *VaultStore) readField(ctx context.Context, path, field string) (string, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return "", interfaces.ErrRecordNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", interfaces.ErrRecordNotFound
	}
	value, ok := data[field].(string)
	if !ok {
		return "", interfaces.ErrRecordNotFound
	}
	return value, nil
}

func (s *VaultStore) writeFields(ctx context.Context, path string, fields map[string]interface{}, casNew bool) error {
	payload := map[string]interface{}{"data": fields}
	if casNew {
		// cas=0 makes the write fail unless the key does not exist yet;
		// this is the serialization point for concurrent inserts.
		payload["options"] = map[string]interface{}{"cas": 0}
	}

	if _, err := s.client.Logical().WriteWithContext(ctx, path, payload); err != nil {
		if casNew && strings.Contains(err.Error(), "check-and-set") {
			return fmt.Errorf("%w: device already has an active record", interfaces.ErrRecordExists)
		}
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *VaultStore) getRecord(ctx context.Context, id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	raw, err := s.readField(ctx, s.dataPath("keys", id.String()), "record")
	if err != nil {
		return nil, err
	}

	var record interfaces.SimKeyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to decode key record: %w", err)
	}
	return &record, nil
}

func (s *VaultStore) setRecord(ctx context.Context, record *interfaces.SimKeyRecord, casNew bool) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode key record: %w", err)
	}
	return s.writeFields(ctx, s.dataPath("keys", record.SessionKeyID.String()), map[string]interface{}{"record": string(data)}, casNew)
}

// FindActiveByDevice returns the active record for an (owner, device) pair.
func (s *VaultStore) FindActiveByDevice(ctx context.Context, owner interfaces.OwnerID, device interfaces.DeviceID) (*interfaces.SimKeyRecord, error) {
	akid, err := s.readField(ctx, s.dataPath("devices", s.deviceHash(owner, device)), "akid")
	if err != nil {
		return nil, err
	}

	record, err := s.getRecord(ctx, interfaces.SessionKeyID(akid))
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	return record, nil
}

// FindActiveByID returns the active record for a session key id.
func (s *VaultStore) FindActiveByID(ctx context.Context, id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	return record, nil
}

// Insert persists a new active record. The device index is written with
// check-and-set so a concurrent insert for the same device loses cleanly.
func (s *VaultStore) Insert(ctx context.Context, record *interfaces.SimKeyRecord) error {
	if _, err := s.getRecord(ctx, record.SessionKeyID); err == nil {
		return fmt.Errorf("%w: session key id %s already known", interfaces.ErrRecordExists, record.SessionKeyID)
	}

	indexPath := s.dataPath("devices", s.deviceHash(record.OwnerID, record.DeviceID))
	if err := s.writeFields(ctx, indexPath, map[string]interface{}{"akid": record.SessionKeyID.String()}, true); err != nil {
		return err
	}

	if err := s.setRecord(ctx, record, false); err != nil {
		if _, delErr := s.client.Logical().DeleteWithContext(ctx, indexPath); delErr != nil {
			s.log.Error("Failed to release device claim after half insert", "err", delErr)
		}
		return err
	}
	return nil
}

// Deactivate transitions a record to inactive and releases its device claim.
func (s *VaultStore) Deactivate(ctx context.Context, id interfaces.SessionKeyID) error {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if !record.Active {
		return interfaces.ErrRecordNotFound
	}

	record.Active = false
	if err := s.setRecord(ctx, record, false); err != nil {
		return err
	}

	indexPath := s.dataPath("devices", s.deviceHash(record.OwnerID, record.DeviceID))
	current, err := s.readField(ctx, indexPath, "akid")
	if err == nil && current == id.String() {
		if _, err := s.client.Logical().DeleteWithContext(ctx, indexPath); err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Append records an accepted transaction on the owner's log.
func (s *VaultStore) Append(ctx context.Context, record *interfaces.TransactionRecord) error {
	existing, err := s.ByOwner(ctx, record.OwnerID)
	if err != nil {
		return err
	}
	existing = append(existing, *record)

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to encode transaction log: %w", err)
	}
	return s.writeFields(ctx, s.dataPath("tx", s.ownerHash(record.OwnerID)), map[string]interface{}{"records": string(data)}, false)
}

// ByOwner returns the transactions recorded for an owner, oldest first.
func (s *VaultStore) ByOwner(ctx context.Context, owner interfaces.OwnerID) ([]interfaces.TransactionRecord, error) {
	raw, err := s.readField(ctx, s.dataPath("tx", s.ownerHash(owner)), "records")
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var records []interfaces.TransactionRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("failed to decode transaction log: %w", err)
	}
	return records, nil
}

// Name returns an identifier for logging.
func (s *VaultStore) Name() string {
	return "vault-" + s.basePath
}
