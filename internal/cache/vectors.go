// Package cache holds the small in-process caches the memory and
// retrieval layers share.
package cache

import (
	"container/list"
	"sync"
)

// Vectors is an LRU of embedding vectors keyed by the text they embed.
// Safe for concurrent use.
type Vectors struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type vectorEntry struct {
	key string
	vec []float32
}

// NewVectors builds an LRU holding at most capacity vectors. A capacity
// below one disables the cache.
func NewVectors(capacity int) *Vectors {
	return &Vectors{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the cached vector for text and marks it most recently used.
func (v *Vectors) Get(text string) ([]float32, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	el, ok := v.entries[text]
	if !ok {
		return nil, false
	}
	v.order.MoveToFront(el)
	return el.Value.(*vectorEntry).vec, true
}

// Put stores the vector for text, evicting the least recently used entry
// when full.
func (v *Vectors) Put(text string, vec []float32) {
	if v.capacity < 1 || text == "" || len(vec) == 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if el, ok := v.entries[text]; ok {
		el.Value.(*vectorEntry).vec = vec
		v.order.MoveToFront(el)
		return
	}
	v.entries[text] = v.order.PushFront(&vectorEntry{key: text, vec: vec})
	for v.order.Len() > v.capacity {
		oldest := v.order.Back()
		v.order.Remove(oldest)
		delete(v.entries, oldest.Value.(*vectorEntry).key)
	}
}

// Len returns the number of cached vectors.
func (v *Vectors) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.order.Len()
}
