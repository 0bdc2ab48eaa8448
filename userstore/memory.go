package userstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	goToken "github.com/MrEthical07/goToken"
)

// MemoryProvider is an in-process [Store].
type MemoryProvider struct {
	hasher Hasher

	mu    sync.RWMutex
	users map[string]goToken.UserRecord
}

// NewMemoryProvider returns an empty provider that hashes with hasher.
func NewMemoryProvider(hasher Hasher) *MemoryProvider {
	return &MemoryProvider{
		hasher: hasher,
		users:  make(map[string]goToken.UserRecord),
	}
}

// GetUserByIdentifier implements [goToken.UserProvider].
func (m *MemoryProvider) GetUserByIdentifier(_ context.Context, identifier string) (goToken.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[identifier]
	if !ok {
		return goToken.UserRecord{}, notFound(identifier)
	}
	u.Roles = slices.Clone(u.Roles)
	return u, nil
}

// Create implements [Store].
func (m *MemoryProvider) Create(_ context.Context, identifier, password string, roles []string) error {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return err
	}
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; ok {
		return fmt.Errorf("%w: %s", ErrUserExists, id)
	}
	m.users[id] = goToken.UserRecord{
		Identifier:   id,
		PasswordHash: hash,
		Roles:        slices.Clone(roles),
	}
	return nil
}
