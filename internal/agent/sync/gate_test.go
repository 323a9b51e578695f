package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathGateSerializesSamePath(t *testing.T) {
	g := newPathGate()
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "/tmp/a.txt"))
	assert.True(t, g.InFlight("/tmp/a.txt"))

	acquired := make(chan struct{})
	go func() {
		g.Acquire(ctx, "/tmp/a.txt")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while first holds the gate")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release("/tmp/a.txt")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should proceed after release")
	}
}

func TestPathGateDifferentPathsDoNotBlock(t *testing.T) {
	g := newPathGate()
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "/tmp/a.txt"))
	require.NoError(t, g.Acquire(ctx, "/tmp/b.txt"))

	g.Release("/tmp/a.txt")
	g.Release("/tmp/b.txt")
	assert.False(t, g.InFlight("/tmp/a.txt"))
	assert.False(t, g.InFlight("/tmp/b.txt"))
}

func TestPathGateAcquireHonorsContext(t *testing.T) {
	g := newPathGate()
	require.NoError(t, g.Acquire(context.Background(), "/tmp/a.txt"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.Acquire(ctx, "/tmp/a.txt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPathGateManyWaiters(t *testing.T) {
	g := newPathGate()
	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx, "/tmp/a.txt"))

	const waiters = 8
	var wg gosync.WaitGroup
	var held gosync.Mutex
	holders := 0
	maxHolders := 0

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Acquire(ctx, "/tmp/a.txt"))
			held.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			held.Unlock()

			time.Sleep(time.Millisecond)

			held.Lock()
			holders--
			held.Unlock()
			g.Release("/tmp/a.txt")
		}()
	}

	g.Release("/tmp/a.txt")
	wg.Wait()

	assert.Equal(t, 1, maxHolders, "gate must never admit two holders")
	assert.False(t, g.InFlight("/tmp/a.txt"))
}
