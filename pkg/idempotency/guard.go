// Package idempotency provides in-flight guards and duplicate suppression for
// operations that must not run twice.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrInFlight is returned when the key already has an operation running
var ErrInFlight = errors.New("operation already in flight")

// Guard admits at most one holder per key
type Guard struct {
	mu      sync.Mutex
	holders map[string]time.Time
}

// NewGuard creates an empty guard
func NewGuard() *Guard {
	return &Guard{holders: make(map[string]time.Time)}
}

// Acquire claims key and returns the release func. A second Acquire before
// release fails with ErrInFlight.
func (g *Guard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.holders[key]; held {
		return nil, ErrInFlight
	}
	g.holders[key] = time.Now()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.holders, key)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently claimed
func (g *Guard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.holders[key]
	return held
}

// Since returns when key was claimed
func (g *Guard) Since(key string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, held := g.holders[key]
	return t, held
}

// Deduper remembers keys for a while so redelivered messages are dropped
type Deduper struct {
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDeduper creates a deduper that forgets keys after ttl
func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// First reports whether key has not been seen within the TTL and records it
func (d *Deduper) First(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = now
	return true
}

// Key derives a deterministic key from its parts
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
