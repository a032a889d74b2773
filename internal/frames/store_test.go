package frames

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetLastWriteWins(t *testing.T) {
	s := NewStore()

	s.Put("cam-1", []byte("first"))
	s.Put("cam-1", []byte("second"))

	frame, ok := s.Get("cam-1")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), frame)
}

func TestGetMissingSource(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestConcurrentSourcesNoCrossLeakage(t *testing.T) {
	s := NewStore()
	const sources = 32
	const writes = 200

	var wg sync.WaitGroup
	for i := 0; i < sources; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("cam-%d", n)
			for w := 0; w < writes; w++ {
				s.Put(id, []byte(fmt.Sprintf("%s/frame-%d", id, w)))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < sources; i++ {
		id := fmt.Sprintf("cam-%d", i)
		frame, ok := s.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, []byte(fmt.Sprintf("%s/frame-%d", id, writes-1)), frame)
	}
}

func TestConcurrentReadersDoNotBlockWriters(t *testing.T) {
	s := NewStore()
	s.Put("cam-1", []byte("seed"))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.Get("cam-1")
			}
		}
	}()

	for w := 0; w < 1000; w++ {
		s.Put("cam-1", []byte{byte(w)})
	}
	close(done)
	wg.Wait()

	frame, ok := s.Get("cam-1")
	require.True(t, ok)
	assert.Equal(t, []byte{byte(999 % 256)}, frame)
}

func TestSourcesSorted(t *testing.T) {
	s := NewStore()
	s.Put("b", []byte("1"))
	s.Put("a", []byte("1"))
	s.Put("c", []byte("1"))

	assert.Equal(t, []string{"a", "b", "c"}, s.Sources())
}
