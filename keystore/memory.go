package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/akmasim/aanf-banking-backend/interfaces"
)

// MemoryStore is an in-process store backed by mutex-guarded maps.
// It is the default backend for development and the reference for the
// invariants the other backends must uphold.
type MemoryStore struct {
	mu sync.RWMutex

	// records holds every record ever inserted, active or not, keyed by
	// session key id. Logical deletes keep the record here for audit.
	records map[interfaces.SessionKeyID]*interfaces.SimKeyRecord

	// deviceIndex maps an (owner, device) pair to the session key id of
	// its single active record.
	deviceIndex map[deviceKey]interfaces.SessionKeyID

	transactions map[interfaces.OwnerID][]interfaces.TransactionRecord
}

type deviceKey struct {
	owner  interfaces.OwnerID
	device interfaces.DeviceID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[interfaces.SessionKeyID]*interfaces.SimKeyRecord),
		deviceIndex:  make(map[deviceKey]interfaces.SessionKeyID),
		transactions: make(map[interfaces.OwnerID][]interfaces.TransactionRecord),
	}
}

// FindActiveByDevice returns the active record for an (owner, device) pair.
func (s *MemoryStore) FindActiveByDevice(ctx context.Context, owner interfaces.OwnerID, device interfaces.DeviceID) (*interfaces.SimKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.deviceIndex[deviceKey{owner: owner, device: device}]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	record := s.records[id]
	if record == nil || !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	cloned := *record
	return &cloned, nil
}

// FindActiveByID returns the active record for a session key id. Inactive
// records are never returned.
func (s *MemoryStore) FindActiveByID(ctx context.Context, id interfaces.SessionKeyID) (*interfaces.SimKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || !record.Active {
		return nil, interfaces.ErrRecordNotFound
	}
	cloned := *record
	return &cloned, nil
}

// Insert persists a new active record, enforcing one active record per
// device and session key id uniqueness under a single lock.
func (s *MemoryStore) Insert(ctx context.Context, record *interfaces.SimKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.SessionKeyID]; exists {
		return fmt.Errorf("%w: session key id %s already known", interfaces.ErrRecordExists, record.SessionKeyID)
	}

	key := deviceKey{owner: record.OwnerID, device: record.DeviceID}
	if id, claimed := s.deviceIndex[key]; claimed {
		if existing := s.records[id]; existing != nil && existing.Active {
			return fmt.Errorf("%w: device already has an active record", interfaces.ErrRecordExists)
		}
	}

	cloned := *record
	s.records[cloned.SessionKeyID] = &cloned
	s.deviceIndex[key] = cloned.SessionKeyID
	return nil
}

// Deactivate transitions a record to inactive and releases its device claim.
func (s *MemoryStore) Deactivate(ctx context.Context, id interfaces.SessionKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || !record.Active {
		return interfaces.ErrRecordNotFound
	}

	record.Active = false
	key := deviceKey{owner: record.OwnerID, device: record.DeviceID}
	if s.deviceIndex[key] == id {
		delete(s.deviceIndex, key)
	}
	return nil
}

// Append records an accepted transaction.
func (s *MemoryStore) Append(ctx context.Context, record *interfaces.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[record.OwnerID] = append(s.transactions[record.OwnerID], *record)
	return nil
}

// ByOwner returns the transactions recorded for an owner, oldest first.
func (s *MemoryStore) ByOwner(ctx context.Context, owner interfaces.OwnerID) ([]interfaces.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.transactions[owner]
	out := make([]interfaces.TransactionRecord, len(stored))
	copy(out, stored)
	return out, nil
}

// Name returns an identifier for logging.
func (s *MemoryStore) Name() string {
	return "memory"
}
