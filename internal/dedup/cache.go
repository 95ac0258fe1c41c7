package dedup

import (
	"sync"

	"github.com/skinlytics/skinlytics/internal/model"
)

// Cache is a bounded recent-fingerprint set, scoped per source so
// concurrent source tasks never contend on one lock. Eviction is FIFO:
// once a source's set reaches capacity, the oldest fingerprint is
// dropped to admit the new one.
type Cache struct {
	capacity int

	mu      sync.Mutex // guards the sources map only
	sources map[model.Source]*sourceSet
}

type sourceSet struct {
	mu    sync.Mutex
	set   map[string]struct{}
	order []string // insertion order for FIFO eviction
}

// NewCache creates a Cache holding at most capacity fingerprints per
// source.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		sources:  make(map[model.Source]*sourceSet),
	}
}

// Seen reports whether fp was already recorded for src, recording it
// if not.
func (c *Cache) Seen(src model.Source, fp string) bool {
	s := c.forSource(src)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[fp]; ok {
		return true
	}

	if len(s.order) >= c.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}

	s.set[fp] = struct{}{}
	s.order = append(s.order, fp)
	return false
}

// Len returns the number of fingerprints currently held for src.
func (c *Cache) Len(src model.Source) int {
	s := c.forSource(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

func (c *Cache) forSource(src model.Source) *sourceSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sources[src]
	if !ok {
		s = &sourceSet{set: make(map[string]struct{})}
		c.sources[src] = s
	}
	return s
}
