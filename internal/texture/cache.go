package texture

import (
	"sync"
)

// QueueState is the outcome of MarkPending.
type QueueState int

const (
	NewlyQueued QueueState = iota
	AlreadyQueued
)

func (s QueueState) String() string {
	if s == AlreadyQueued {
		return "already queued"
	}
	return "newly queued"
}

// ReadyEntry is a completed load waiting for the consumer to inject it.
type ReadyEntry struct {
	Key         CacheKey
	WantsMipmap bool
}

// ReadyTexture is a ready entry resolved against the cache.
type ReadyTexture struct {
	ReadyEntry
	Image *DecodedImage
}

// CacheStats is a snapshot of the cache's bookkeeping.
type CacheStats struct {
	Cached  int
	Pending int
	Ready   int
}

// Cache holds decoded replacements and the bookkeeping shared between the
// worker and the consumer. A single mutex covers all three structures.
type Cache struct {
	mu      sync.Mutex
	images  map[CacheKey]*DecodedImage
	pending map[CacheKey]pendingLoad
	ready   []ReadyEntry
}

type pendingLoad struct {
	cacheOnly   bool
	wantsMipmap bool
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		images:  make(map[CacheKey]*DecodedImage),
		pending: make(map[CacheKey]pendingLoad),
	}
}

// TryGet returns the decoded image for key. The image must not be modified.
func (c *Cache) TryGet(key CacheKey) (*DecodedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.images[key]
	return img, ok
}

// With calls fn with the image for key while the lock is held.
func (c *Cache) With(key CacheKey, fn func(*DecodedImage)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.images[key]
	if ok {
		fn(img)
	}
	return ok
}

// Insert adds or replaces the image for key.
func (c *Cache) Insert(key CacheKey, img *DecodedImage) {
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
}

// Acquire returns the cached image for a renderer request. A hit resolves any
// pending load of the same key so it is not injected a second time.
func (c *Cache) Acquire(key CacheKey) (*DecodedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.images[key]
	if ok {
		delete(c.pending, key)
	}
	return img, ok
}

// MarkPending records a queued load. If the key is already pending the
// cache-only flags are ANDed so a real request wins over a precache, and a
// mipmap request sticks.
func (c *Cache) MarkPending(key CacheKey, cacheOnly, wantsMipmap bool) QueueState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.pending[key]; ok {
		c.pending[key] = pendingLoad{
			cacheOnly:   prev.cacheOnly && cacheOnly,
			wantsMipmap: prev.wantsMipmap || wantsMipmap,
		}
		return AlreadyQueued
	}
	c.pending[key] = pendingLoad{cacheOnly: cacheOnly, wantsMipmap: wantsMipmap}
	return NewlyQueued
}

// CompletePending removes key from the pending set and returns its
// cache-only flag.
func (c *Cache) CompletePending(key CacheKey) (cacheOnly bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, found := c.pending[key]
	delete(c.pending, key)
	return p.cacheOnly, found
}

// IsPending reports whether a load of key is outstanding.
func (c *Cache) IsPending(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// FinishLoad stores the result of a background load. The load is stale when
// the key is no longer pending or was cached meanwhile; a stale result is
// dropped and false is returned. The check and the insert happen under one
// lock acquisition.
func (c *Cache) FinishLoad(key CacheKey, img *DecodedImage, wantsMipmap bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[key]; !ok {
		return false
	}
	if _, ok := c.images[key]; ok {
		delete(c.pending, key)
		return false
	}
	c.images[key] = img
	c.ready = append(c.ready, ReadyEntry{Key: key, WantsMipmap: wantsMipmap})
	return true
}

// TakeReady empties the ready list. Entries whose key is no longer pending
// were superseded and are dropped. Entries that are still cache-only were
// never requested by the renderer and are dropped too. The rest are returned
// with their images and leave the pending set. WantsMipmap is set if any
// merged request asked for mipmaps.
func (c *Cache) TakeReady() []ReadyTexture {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ReadyTexture
	for _, e := range c.ready {
		p, ok := c.pending[e.Key]
		if !ok {
			continue
		}
		delete(c.pending, e.Key)
		if p.cacheOnly {
			continue
		}
		e.WantsMipmap = e.WantsMipmap || p.wantsMipmap
		img, ok := c.images[e.Key]
		if !ok {
			continue
		}
		out = append(out, ReadyTexture{ReadyEntry: e, Image: img})
	}
	c.ready = nil
	return out
}

// CancelPending forgets every outstanding load but keeps decoded images.
func (c *Cache) CancelPending() {
	c.mu.Lock()
	clear(c.pending)
	c.ready = nil
	c.mu.Unlock()
}

// Clear drops decoded images, pending loads and the ready list.
func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.images)
	clear(c.pending)
	c.ready = nil
	c.mu.Unlock()
}

// Stats returns the current sizes.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Cached:  len(c.images),
		Pending: len(c.pending),
		Ready:   len(c.ready),
	}
}
