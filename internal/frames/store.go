// Package frames holds the latest uploaded frame per source for the live
// preview endpoint. State is process-lifetime only, never persisted.
package frames

import (
	"sort"
	"sync"
)

// Store keeps at most one encoded frame per source id. Writers overwrite in
// place; readers always see a complete frame (the slice is replaced, never
// written into).
type Store struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

func NewStore() *Store {
	return &Store{frames: make(map[string][]byte)}
}

// Put replaces the latest frame for the source. Last write wins.
func (s *Store) Put(sourceID string, frame []byte) {
	s.mu.Lock()
	s.frames[sourceID] = frame
	s.mu.Unlock()
}

// Get returns the latest frame for the source, or ok=false when the source
// has not uploaded yet.
func (s *Store) Get(sourceID string) ([]byte, bool) {
	s.mu.RLock()
	frame, ok := s.frames[sourceID]
	s.mu.RUnlock()
	return frame, ok
}

// Sources lists source ids that have uploaded at least one frame, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.frames))
	for id := range s.frames {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
