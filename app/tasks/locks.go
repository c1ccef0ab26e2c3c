package tasks

import "sync"

// KeyedMutex is a set of non-blocking advisory locks keyed by string.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]struct{})}
}

// TryLock acquires key and reports whether it was free.
func (k *KeyedMutex) TryLock(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.held[key]; ok {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.held, key)
}

func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}
