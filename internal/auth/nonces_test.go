// ABOUTME: Tests for the nonce replay cache covering TTL expiry and eviction
// ABOUTME: Verifies bounded size and that expired nonces become usable again

package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNonceCache_MarksAndDetects(t *testing.T) {
	c := NewNonceCache(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark("k1"))
	assert.True(t, c.CheckAndMark("k1"))
	assert.False(t, c.CheckAndMark("k2"))
}

func TestNonceCache_ExpiredEntryReusable(t *testing.T) {
	c := NewNonceCache(10*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark("k1"))
	time.Sleep(20 * time.Millisecond)

	// After the TTL the same nonce is treated as fresh again
	assert.False(t, c.CheckAndMark("k1"))
	assert.True(t, c.CheckAndMark("k1"))
}

func TestNonceCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewNonceCache(time.Minute, 3)
	defer c.Close()

	c.CheckAndMark("k1")
	c.CheckAndMark("k2")
	c.CheckAndMark("k3")
	assert.Equal(t, 3, c.Len())

	// Adding a fourth evicts the oldest
	c.CheckAndMark("k4")
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.CheckAndMark("k1"))
}

func TestNonceCache_ConcurrentSameKey(t *testing.T) {
	c := NewNonceCache(time.Minute, 1000)
	defer c.Close()

	const goroutines = 50
	var wg sync.WaitGroup
	fresh := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("contested") {
				fresh <- true
			}
		}()
	}
	wg.Wait()
	close(fresh)

	// Exactly one goroutine wins the nonce
	assert.Equal(t, 1, len(fresh))
}

func TestNonceCache_RemoveExpired(t *testing.T) {
	c := NewNonceCache(10*time.Millisecond, 100)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.CheckAndMark(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 10, c.Len())

	time.Sleep(20 * time.Millisecond)
	c.removeExpired()
	assert.Equal(t, 0, c.Len())
}

func TestNonceCache_CloseIdempotent(t *testing.T) {
	c := NewNonceCache(time.Minute, 100)
	c.Close()
	c.Close()
}
