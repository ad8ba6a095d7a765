package keystore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// FileStore persists records on the local file system. Key records live
// under keys/ named by session key id, the active-device index under
// device_index/ named by a hash of the (owner, device) pair, and each
// owner's transactions as a JSON array under transactions/.
type FileStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string

	// mu serializes writers; the file layout alone cannot provide the
	// read-modify-write atomicity Deactivate and Append need.
	mu sync.Mutex
}

// NewFileStore creates a file-backed store rooted at baseDir, creating the
// directory layout if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "keys"), filepath.Join(baseDir, "device_index"), filepath.Join(baseDir, "transactions")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

func (s *FileStore) recordPath(id interfaces.SessionKeyID) string {
	return filepath.Join(s.baseDir, "keys", id.String()+".json")
}

func (s *FileStore) indexPath(owner interfaces.OwnerID, device interfaces.DeviceID) string {
	digest := sha256.Sum256([]byte(owner.String() + "\x00" + device.String()))
	return filepath.Join(s.baseDir, "device_index", fmt.Sprintf("%x", digest))
}

func (s *FileStore) transactionsPath(owner interfaces.OwnerID) string {
	digest := sha256.Sum256([]byte(owner.String()))
	return filepath.Join(s.baseDir, "transactions", fmt.Sprintf("%x.json", digest))
}

func (s *FileStore) readRecord(id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if os.IsNotExist(err) {
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

func (s *FileStore) writeRecord(record *interfaces.SimKeyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode key record: %w", err)
	}
	if err := os.WriteFile(s.recordPath(record.SessionKeyID), data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// FindActiveByDevice returns the active record for an (owner, device) pair.
func (s *FileStore) FindActiveByDevice(ctx context.Context, owner interfaces.OwnerID, device interfaces.DeviceID) (*interfaces.SimKeyRecord, error) {
	idBytes, err := os.ReadFile(s.indexPath(owner, device))
	if os.IsNotExist(err) {
		return nil, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	record, err := s.readRecord(interfaces.SessionKeyID(idBytes))
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	return record, nil
}

// FindActiveByID returns the active record for a session key id.
func (s *FileStore) FindActiveByID(ctx context.Context, id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	record, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	return record, nil
}

// Insert persists a new active record. The device index file is created
// with O_EXCL so a concurrent insert for the same device loses cleanly.
func (s *FileStore) Insert(ctx context.Context, record *interfaces.SimKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(record.SessionKeyID)); err == nil {
		return fmt.Errorf("%w: session key id %s already known", interfaces.ErrRecordExists, record.SessionKeyID)
	}

	indexFile, err := os.OpenFile(s.indexPath(record.OwnerID, record.DeviceID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if os.IsExist(err) {
		return fmt.Errorf("%w: device already has an active record", interfaces.ErrRecordExists)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	defer indexFile.Close()

	if _, err := indexFile.WriteString(record.SessionKeyID.String()); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	return s.writeRecord(record)
}

// Deactivate transitions a record to inactive and removes its device claim.
func (s *FileStore) Deactivate(ctx context.Context, id interfaces.SessionKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readRecord(id)
	if err != nil {
		return err
	}
	if !record.Active {
		return interfaces.ErrRecordNotFound
	}

	record.Active = false
	if err := s.writeRecord(record); err != nil {
		return err
	}

	if err := os.Remove(s.indexPath(record.OwnerID, record.DeviceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// Append records an accepted transaction to the owner's log file.
func (s *FileStore) Append(ctx context.Context, record *interfaces.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readTransactions(record.OwnerID)
	if err != nil {
		return err
	}
	existing = append(existing, *record)

	data, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to encode transaction log: %w", err)
	}
	if err := os.WriteFile(s.transactionsPath(record.OwnerID), data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}
	return nil
}

// ByOwner returns the transactions recorded for an owner, oldest first.
func (s *FileStore) ByOwner(ctx context.Context, owner interfaces.OwnerID) ([]interfaces.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readTransactions(owner)
}

func (s *FileStore) readTransactions(owner interfaces.OwnerID) ([]interfaces.TransactionRecord, error) {
	data, err := os.ReadFile(s.transactionsPath(owner))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrStoreUnavailable, err)
	}

	var records []interfaces.TransactionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode transaction log: %w", err)
	}
	return records, nil
}

// Name returns an identifier for logging.
func (s *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.baseDir))
}

// LocationURI returns the URI that identifies this store.
func (s *FileStore) LocationURI() string {
	return s.locationURI
}
