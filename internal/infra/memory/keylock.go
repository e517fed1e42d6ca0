package memory

import "sync"

// keyLocks hands out one RWMutex per key and forgets it once nobody holds or
// waits for it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.RWMutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// acquire blocks until key is held and returns the matching release.
func (k *keyLocks) acquire(key string, shared bool) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	if shared {
		l.RLock()
	} else {
		l.Lock()
	}

	return func() {
		if shared {
			l.RUnlock()
		} else {
			l.Unlock()
		}
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
