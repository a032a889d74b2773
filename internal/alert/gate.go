// Package alert decides when a detection may notify and delivers the
// notification. At most one alert per key fires per cooldown window.
package alert

import (
	"sync"
	"time"
)

// Gate tracks the last confirmed send per notification key. The key is
// (category, source) so repeated sightings of the same kind at the same
// camera stay quiet for the cooldown window.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSent map[string]time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// Key builds the notification key for a detection.
func Key(category, sourceID string) string {
	return category + "|" + sourceID
}

// TryAcquire atomically checks the cooldown and records now as the send
// time when the key qualifies. Two concurrent detections of the same key
// cannot both acquire: the check and the record happen under one lock.
// The caller must Release the key if the subsequent send fails, so the
// next qualifying detection may retry.
func (g *Gate) TryAcquire(key string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastSent[key]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastSent[key] = now
	return true
}

// Release rolls back a TryAcquire whose send did not complete. acquired must
// be the timestamp that TryAcquire recorded. Only the acquirer's own entry is
// cleared; if a later acquire already overwrote it (a slow failed send racing
// a fresh success), the newer timestamp stays.
func (g *Gate) Release(key string, acquired time.Time) {
	g.mu.Lock()
	if last, ok := g.lastSent[key]; ok && last.Equal(acquired) {
		delete(g.lastSent, key)
	}
	g.mu.Unlock()
}
