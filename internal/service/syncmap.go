package service

import "sync"

// SyncMap is a type-safe concurrent map using generics.
// An RWMutex over a plain map beats sync.Map for our workload of frequent
// reads and infrequent writes, and keeps the call sites typed.
type SyncMap[K comparable, V any] struct {
	m  map[K]V
	mu sync.RWMutex
}

// NewSyncMap creates a new type-safe concurrent map.
func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{
		m: make(map[K]V),
	}
}

// Load returns the value stored in the map for a key, or the zero value
// if no value is present. The ok result indicates whether value was found.
func (sm *SyncMap[K, V]) Load(key K) (value V, ok bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	value, ok = sm.m[key]
	return
}

// Store sets the value for a key.
func (sm *SyncMap[K, V]) Store(key K, value V) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.m[key] = value
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it stores and returns the given value.
// The loaded result is true if the value was loaded, false if stored.
func (sm *SyncMap[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	sm.mu.RLock()
	actual, loaded = sm.m[key]
	sm.mu.RUnlock()
	if loaded {
		return actual, true
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Check again in case another goroutine stored a value
	// between releasing RLock and acquiring Lock.
	actual, loaded = sm.m[key]
	if loaded {
		return actual, true
	}

	sm.m[key] = value
	return value, false
}

// Delete deletes the value for a key.
func (sm *SyncMap[K, V]) Delete(key K) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.m, key)
}

// Len returns the number of items in the map.
func (sm *SyncMap[K, V]) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.m)
}

// sessionLocks serializes writers per session ID. The store's conditional
// writes are the correctness mechanism; this lock just keeps concurrent
// submissions for one hot session from burning retries against each other.
type sessionLocks struct {
	locks *SyncMap[string, *sync.Mutex]
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: NewSyncMap[string, *sync.Mutex]()}
}

// Lock acquires the per-session mutex and returns its unlock func.
func (sl *sessionLocks) Lock(sessionID string) func() {
	mu, _ := sl.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}
