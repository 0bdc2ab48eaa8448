package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Revoke implements [Store].
func (m *MemoryStore) Revoke(ctx context.Context, rec Record) error {
	_, err := m.RevokeIfAbsent(ctx, rec)
	return err
}

// RevokeIfAbsent implements [Store]. The check and the insert happen under
// one lock acquisition.
func (m *MemoryStore) RevokeIfAbsent(ctx context.Context, rec Record) (bool, error) {
	if err := rec.validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.TokenID]; exists {
		return false, nil
	}
	m.records[rec.TokenID] = stamp(rec, m.now)
	return true, nil
}

// IsRevoked implements [Store].
func (m *MemoryStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[tokenID]
	return ok, nil
}

// Lookup implements [Store].
func (m *MemoryStore) Lookup(ctx context.Context, tokenID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[tokenID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// PurgeExpired implements [Store].
func (m *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.records {
		if !rec.ExpiresAt.After(now) {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
