package cache

import (
	"sync"
	"time"
)

// Dedupe is a TTL set answering "was this key seen recently?". Entries
// expire after the TTL; once the set is full the oldest entry is evicted.
// Safe for concurrent use.
type Dedupe struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	max  int
}

// NewDedupe builds a set holding at most max keys for ttl each. A zero
// TTL means entries never expire; a max below one disables the set.
func NewDedupe(max int, ttl time.Duration) *Dedupe {
	return &Dedupe{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		max:  max,
	}
}

// Seen reports whether key was recorded within the TTL, recording it
// either way.
func (d *Dedupe) Seen(key string) bool {
	return d.SeenAt(key, time.Now())
}

// SeenAt is Seen with an explicit clock, for tests.
func (d *Dedupe) SeenAt(key string, now time.Time) bool {
	if key == "" || d.max < 1 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.seen[key]
	fresh := ok && (d.ttl <= 0 || now.Sub(at) < d.ttl)
	d.seen[key] = now
	if !fresh {
		d.prune(now)
	}
	return fresh
}

// prune drops expired entries, then evicts the oldest until the set fits.
// The set is small; the linear scans only run on insert.
func (d *Dedupe) prune(now time.Time) {
	if d.ttl > 0 {
		for key, at := range d.seen {
			if now.Sub(at) >= d.ttl {
				delete(d.seen, key)
			}
		}
	}
	for len(d.seen) > d.max {
		var oldestKey string
		var oldestAt time.Time
		for key, at := range d.seen {
			if oldestKey == "" || at.Before(oldestAt) {
				oldestKey, oldestAt = key, at
			}
		}
		delete(d.seen, oldestKey)
	}
}

// Forget removes a key so the next Seen reports false.
func (d *Dedupe) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// Len returns the number of tracked keys.
func (d *Dedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
