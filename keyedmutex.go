package dialogsdk

import "sync"

// ──────────────────────────────────────────────
// KeyedMutex — per-user serialization of state updates
// ──────────────────────────────────────────────

// KeyedMutex provides mutual exclusion per key. Entries are reference
// counted and removed once the last holder unlocks, so idle users cost
// nothing.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock acquires the mutex for key, blocking while another holder has it.
func (m *KeyedMutex) Lock(key string) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyedEntry{}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for key.
func (m *KeyedMutex) Unlock(key string) {
	m.mu.Lock()
	entry := m.entries[key]
	if entry == nil {
		m.mu.Unlock()
		panic("dialogsdk: unlock of unlocked key " + key)
	}
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	entry.mu.Unlock()
}
