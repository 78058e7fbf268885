// ABOUTME: Keyed mutex serializing upserts per (owner, key)
// ABOUTME: Entries are reference-counted and dropped when the last holder unlocks

package memory

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLock hands out one mutex per key. The zero value is ready to use.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// lock acquires the mutex for key and returns the matching unlock func.
func (k *keyLock) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
