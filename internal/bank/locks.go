package bank

import "sync"

// keyedMutex is a lock-per-key map. The guard mutex only protects the map
// and the reference counts; it is released before the per-key lock is
// taken, so holders of different keys never wait on each other. An entry is
// removed when its last holder or waiter unlocks, so the map only holds keys
// currently in use.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int // holders plus waiters, guarded by keyedMutex.mu
}

// Lock blocks until the lock for key is held and returns its unlock func.
func (k *keyedMutex) Lock(key int) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// len reports how many keys currently have an entry.
func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
