package state

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero time means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore keeps records in process memory. Expired entries are swept by
// a background janitor so abandoned flow state does not accumulate.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	done    chan struct{}
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}
	go ms.janitor()
	return ms
}

func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, ok := ms.entries[key]
	if !ok || entry.expired(time.Now()) {
		return nil, ErrNotFound
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (ms *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := &memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	ms.mu.Lock()
	ms.entries[key] = entry
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, key string) error {
	ms.mu.Lock()
	delete(ms.entries, key)
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) Close() error {
	close(ms.done)
	return nil
}

func (ms *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.sweep()
		case <-ms.done:
			return
		}
	}
}

func (ms *MemoryStore) sweep() {
	now := time.Now()
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for key, entry := range ms.entries {
		if entry.expired(now) {
			delete(ms.entries, key)
		}
	}
}
