// ABOUTME: Thread-safe TTL cache for consumed authentication nonces.
// ABOUTME: Size-limited with O(1) oldest-entry eviction and background sweep.

package auth

import (
	"container/list"
	"sync"
	"time"
)

// nonceEntry stores the consumption time and list element for a cached nonce.
type nonceEntry struct {
	seenAt  time.Time
	element *list.Element
}

// NonceCache tracks consumed (access_key, nonce) pairs so a signature can
// only be presented once within its TTL window. Uses a doubly-linked list
// to maintain insertion order for O(1) eviction when at capacity.
type NonceCache struct {
	mu      sync.Mutex
	seen    map[string]*nonceEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewNonceCache creates a nonce cache with the specified TTL and maximum
// size. A background goroutine periodically sweeps expired entries.
func NewNonceCache(ttl time.Duration, maxSize int) *NonceCache {
	c := &NonceCache{
		seen:    make(map[string]*nonceEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CheckAndMark atomically checks whether a nonce has been consumed and
// marks it if not. Returns true if the nonce was already seen (replay),
// false if it is new and now recorded. Expired entries are treated as
// absent and reclaimed in place.
func (c *NonceCache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && time.Since(entry.seenAt) < c.ttl {
		return true
	}
	if ok {
		// Expired entry for the same key: refresh in place
		entry.seenAt = time.Now()
		c.order.MoveToBack(entry.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &nonceEntry{seenAt: time.Now(), element: elem}
	return false
}

// Len returns the number of cached nonces, expired or not.
func (c *NonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *NonceCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// sweep runs in a background goroutine, periodically removing expired entries.
func (c *NonceCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired drops all entries older than the TTL.
func (c *NonceCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.seenAt) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (c *NonceCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
