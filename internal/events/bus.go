// ABOUTME: In-memory fan-out bus for outbound gateway events
// ABOUTME: Publishes to all subscribers in total order, evicting slow consumers

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Subscription is a registered event consumer. Events arrives on C in
// publish order. C is closed when the subscriber is removed, either by
// Unsubscribe, by the bus shutting down, or by falling too far behind.
type Subscription struct {
	ID          string
	C           <-chan *Event
	ConnectedAt time.Time

	ch chan *Event
}

// Bus provides in-memory pub/sub for outbound events. Every subscriber
// receives every event. The mutex is held across sends so that all
// subscribers observe events in the same total order; sends never block
// because a subscriber whose buffer is full is evicted instead.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*Subscription
	closed      bool
	logger      *slog.Logger
}

// NewBus creates a bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]*Subscription),
		logger:      logger.With("component", "bus"),
	}
}

// Subscribe registers a new subscriber. The subscription is automatically
// removed when ctx is cancelled. Returns nil if the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	ch := make(chan *Event, subscriberBufferSize)
	sub := &Subscription{
		ID:          uuid.New().String(),
		C:           ch,
		ConnectedAt: time.Now(),
		ch:          ch,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", sub.ID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(sub.ID)
	}()

	return sub
}

// Publish sends an event to all subscribers. A subscriber whose buffer is
// full is closed and removed rather than blocking or silently losing a
// single event; the client reconnects and resumes from live traffic.
func (b *Bus) Publish(event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- event:
			// Sent
		default:
			delete(b.subscribers, id)
			close(sub.ch)
			b.logger.Warn("evicted slow subscriber",
				"sub_id", id,
				"event_id", event.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Removing an
// unknown or already-evicted ID is a no-op.
func (b *Bus) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subID]
	if !ok {
		return
	}

	delete(b.subscribers, subID)
	close(sub.ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close shuts down the bus and closes all subscriber channels. Publish
// and Subscribe become no-ops afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}

	b.logger.Debug("bus closed")
}
