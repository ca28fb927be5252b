package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLockSerializesSameKey(t *testing.T) {
	lock := NewKeyedLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lock.Lock("user-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedLockReleasesEntries(t *testing.T) {
	lock := NewKeyedLock()

	unlock := lock.Lock("user-1")
	unlock()

	lock.mu.Lock()
	defer lock.mu.Unlock()
	assert.Empty(t, lock.locks, "released keys don't accumulate")
}

func TestKeyedLockDifferentKeysDoNotBlock(t *testing.T) {
	lock := NewKeyedLock()

	unlockA := lock.Lock("user-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := lock.Lock("user-b")
		unlockB()
		close(done)
	}()
	<-done
}
