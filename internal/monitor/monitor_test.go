package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitBlocksUntilBroadcast(t *testing.T) {
	m := New()
	done := make(chan uint64, 1)

	go func() {
		epoch, ok := m.Wait(0)
		require.True(t, ok)
		done <- epoch
	}()

	// Give the waiter a chance to block before broadcasting.
	time.Sleep(20 * time.Millisecond)
	m.Broadcast()

	select {
	case epoch := <-done:
		assert.Equal(t, uint64(1), epoch)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestWaitReturnsImmediatelyIfAlreadyPast(t *testing.T) {
	m := New()
	m.Broadcast()
	m.Broadcast()

	epoch, ok := m.Wait(0)
	require.True(t, ok)
	assert.Equal(t, uint64(2), epoch)
}

func TestBroadcastWakesAllWaiters(t *testing.T) {
	m := New()
	const waiters = 8

	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			_, ok := m.Wait(0)
			assert.True(t, ok)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	m.Broadcast()

	wgDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgDone)
	}()

	select {
	case <-wgDone:
	case <-time.After(time.Second):
		t.Fatal("not all waiters woke up")
	}
}

func TestCloseWakesWaiterWithoutCompletion(t *testing.T) {
	m := New()
	done := make(chan bool, 1)

	go func() {
		_, ok := m.Wait(0)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	m.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up on close")
	}
}

func TestEpochPerIteration(t *testing.T) {
	m := New()

	// Sanity: no broadcast yet, so Wait(0) would block; read Epoch instead
	// of calling Wait directly.
	require.Equal(t, uint64(0), m.Epoch())

	// Simulate a repeat schedule: broadcast twice, dependent should see
	// each new epoch exactly once.
	var lastSeen uint64
	advance := func() uint64 {
		e, ok := m.Wait(lastSeen)
		require.True(t, ok)
		lastSeen = e
		return e
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Broadcast()
	}()
	assert.Equal(t, uint64(1), advance())

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Broadcast()
	}()
	assert.Equal(t, uint64(2), advance())
}
