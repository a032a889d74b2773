package alert

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTryAcquireFirstTime(t *testing.T) {
	g := NewGate(5 * time.Minute)
	now := time.Now()

	assert.True(t, g.TryAcquire(Key("missing", "cam-1"), now))
}

func TestCooldownWindow(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	key := Key("missing", "cam-1")

	assert.True(t, g.TryAcquire(key, t0))
	assert.False(t, g.TryAcquire(key, t0.Add(time.Second)))
	assert.False(t, g.TryAcquire(key, t0.Add(5*time.Minute-time.Nanosecond)))
	assert.True(t, g.TryAcquire(key, t0.Add(5*time.Minute)))
}

func TestKeysAreIndependent(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Now()

	assert.True(t, g.TryAcquire(Key("missing", "cam-1"), t0))
	assert.True(t, g.TryAcquire(Key("missing", "cam-2"), t0))
	assert.True(t, g.TryAcquire(Key("wanted", "cam-1"), t0))
}

func TestReleaseAllowsRetry(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Now()
	key := Key("vip", "cam-1")

	assert.True(t, g.TryAcquire(key, t0))
	g.Release(key, t0) // send failed

	assert.True(t, g.TryAcquire(key, t0.Add(time.Second)))
}

// A slow failed send must not erase the entry of a send that succeeded
// after it: Release only clears the acquirer's own timestamp.
func TestReleaseKeepsNewerEntry(t *testing.T) {
	g := NewGate(5 * time.Minute)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	key := Key("missing", "cam-1")

	assert.True(t, g.TryAcquire(key, t0))

	// Cooldown passes while the first send is still stuck; a second
	// detection acquires and succeeds.
	t1 := t0.Add(5 * time.Minute)
	assert.True(t, g.TryAcquire(key, t1))

	// The first send finally fails and releases with its own timestamp.
	g.Release(key, t0)

	assert.False(t, g.TryAcquire(key, t1.Add(time.Second)),
		"the successful send's cooldown must survive the stale release")
	assert.True(t, g.TryAcquire(key, t1.Add(5*time.Minute)))
}

// Concurrent detections of the same key must yield exactly one acquisition.
func TestTryAcquireAtomicUnderContention(t *testing.T) {
	g := NewGate(5 * time.Minute)
	now := time.Now()
	key := Key("wanted", "cam-1")

	const goroutines = 64
	var acquired int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire(key, now) {
				atomic.AddInt64(&acquired, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), acquired)
}
