package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/skill-verifier/internal/types"
)

// MemoryRecordStore keeps records in process memory
type MemoryRecordStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64][]byte
	// Now supplies creation timestamps
	Now func() time.Time
}

// NewMemoryRecordStore creates an empty store
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[int64][]byte),
		Now:     time.Now,
	}
}

// Create implements RecordStore. The stored copy is independent of record.
func (m *MemoryRecordStore) Create(_ context.Context, record *types.VerificationRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	record.ID = m.nextID
	record.CreatedAt = m.Now().UTC()

	data, err := json.Marshal(record)
	if err != nil {
		m.nextID--
		return 0, fmt.Errorf("failed to encode verification record: %w", err)
	}
	m.records[record.ID] = data
	return record.ID, nil
}

// GetByID implements RecordStore
func (m *MemoryRecordStore) GetByID(_ context.Context, id int64) (*types.VerificationRecord, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}

	var record types.VerificationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode verification record %d: %w", id, err)
	}
	return &record, nil
}

// Len returns the number of stored records
func (m *MemoryRecordStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
