package utils

import "sync"

// KeyedLock serializes work per key. Profile updates use it so two uploads
// for the same user never interleave, while different users proceed freely.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*entry)}
}

// Lock blocks until the key is free and returns an unlock func
func (k *KeyedLock) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
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
