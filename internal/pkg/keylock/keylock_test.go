package keylock

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	l := New()
	key := OrderKey(uuid.New())

	unlock, ok := l.TryLock(key)
	require.True(t, ok)
	assert.True(t, l.Held(key))

	_, ok = l.TryLock(key)
	assert.False(t, ok)

	_, ok = l.TryLock(DisputeKey(uuid.New()))
	assert.True(t, ok)

	unlock()
	unlock()
	assert.False(t, l.Held(key))

	_, ok = l.TryLock(key)
	assert.True(t, ok)
}

func TestTryLock_ZeroValue(t *testing.T) {
	var l Locker
	_, ok := l.TryLock("k")
	assert.True(t, ok)
}

func TestTryLock_SingleWinner(t *testing.T) {
	l := New()
	key := OrderKey(uuid.New())
	start := make(chan struct{})
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := l.TryLock(key); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}
