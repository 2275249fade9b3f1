package nonce

import (
	"context"
	"sync"
)

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// MemoryStore keeps nonces in a map protected by a RWMutex. Single
// process only; the SQL store is the production backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]struct{}),
	}
}

func key(deviceID, n string) string {
	return deviceID + "\x00" + n
}

func (m *MemoryStore) Seen(ctx context.Context, deviceID, n string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key(deviceID, n)]
	return ok, nil
}

func (m *MemoryStore) Record(ctx context.Context, deviceID, n string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(deviceID, n)
	if _, ok := m.entries[k]; ok {
		return &ReplayError{DeviceID: deviceID, Nonce: n}
	}
	m.entries[k] = struct{}{}
	return nil
}
