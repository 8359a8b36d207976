// ABOUTME: Tests for the live session state machine using a fake feed
// ABOUTME: Covers single-session enforcement and stop notification delivery

package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musehq/muse-gateway/internal/events"
)

type fakeConn struct {
	batches chan []*Message
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		batches: make(chan []*Message, 8),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadBatch() ([]*Message, error) {
	select {
	case msgs := <-c.batches:
		return msgs, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Heartbeat() error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeFeed struct {
	mu      sync.Mutex
	conn    *fakeConn
	openErr error
	opens   int
	ended   []string
}

func (f *fakeFeed) Open(ctx context.Context) (*Session, FeedConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	f.conn = newFakeConn()
	return &Session{
		GameID:    "game-1",
		RoomID:    42,
		Streamer:  "streamer",
		StartedAt: time.Now().Add(-30 * time.Second),
	}, f.conn, nil
}

func (f *fakeFeed) Keepalive(ctx context.Context, gameID string) error { return nil }

func (f *fakeFeed) End(ctx context.Context, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, gameID)
	return nil
}

func (f *fakeFeed) endedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ended...)
}

func collectKinds(t *testing.T, sub *events.Subscription, n int) []events.Kind {
	t.Helper()
	var kinds []events.Kind
	for i := 0; i < n; i++ {
		select {
		case ev := <-sub.C:
			kinds = append(kinds, ev.Kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d, got %v", i, kinds)
		}
	}
	return kinds
}

func newTestManager(t *testing.T, feed Feed) (*Manager, *events.Bus) {
	t.Helper()
	bus := events.NewBus(nil)
	t.Cleanup(bus.Close)
	return NewManager(feed, bus, time.Minute, nil, nil), bus
}

func TestManager_StartStopLifecycle(t *testing.T) {
	feed := &fakeFeed{}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	require.NoError(t, m.Start(context.Background()))

	status := m.Status()
	assert.Equal(t, StateActive, status.State)
	assert.Equal(t, int64(42), status.RoomID)
	assert.Equal(t, "streamer", status.Streamer)

	stopped, err := m.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, StateIdle, m.Status().State)

	kinds := collectKinds(t, sub, 2)
	assert.Equal(t, []events.Kind{events.KindLiveStarted, events.KindLiveStopped}, kinds)
	assert.Equal(t, []string{"game-1"}, feed.endedSessions())
}

func TestManager_SecondStartRejected(t *testing.T) {
	feed := &fakeFeed{}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	require.NoError(t, m.Start(context.Background()))
	err := m.Start(context.Background())
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Equal(t, 1, feed.opens)

	_, err = m.Stop(context.Background())
	require.NoError(t, err)

	// Only the one session's started/stopped pair, nothing from the
	// rejected start
	kinds := collectKinds(t, sub, 2)
	assert.Equal(t, []events.Kind{events.KindLiveStarted, events.KindLiveStopped}, kinds)
}

func TestManager_StopWhenIdleIsNoOp(t *testing.T) {
	m, bus := newTestManager(t, &fakeFeed{})
	sub := bus.Subscribe(context.Background())

	stopped, err := m.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, stopped)

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_OpenFailureReturnsToIdle(t *testing.T) {
	feed := &fakeFeed{openErr: errors.New("platform down")}
	m, _ := newTestManager(t, feed)

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, m.Status().State)

	// A later start is allowed again
	feed.mu.Lock()
	feed.openErr = nil
	feed.mu.Unlock()
	require.NoError(t, m.Start(context.Background()))
	_, err = m.Stop(context.Background())
	require.NoError(t, err)
}

func TestManager_DisconnectPublishesStoppedOnce(t *testing.T) {
	feed := &fakeFeed{}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	require.NoError(t, m.Start(context.Background()))

	// Simulate the feed dropping the connection
	feed.conn.Close()

	require.Eventually(t, func() bool {
		return m.Status().State == StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	kinds := collectKinds(t, sub, 2)
	assert.Equal(t, []events.Kind{events.KindLiveStarted, events.KindLiveStopped}, kinds)

	// A stop after the disconnect already cleaned up is a no-op
	stopped, err := m.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, stopped)

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_FeedMessagesPublishedAndChatForwarded(t *testing.T) {
	feed := &fakeFeed{}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	type chat struct{ user, text string }
	chats := make(chan chat, 4)
	m.OnChat = func(user, text string) {
		chats <- chat{user, text}
	}

	require.NoError(t, m.Start(context.Background()))

	feed.conn.batches <- parseMessages([]byte(
		"{\"cmd\":\"LIVE_OPEN_PLATFORM_DM\",\"data\":{\"uname\":\"viewer\",\"msg\":\"draw a cat\"}}\x00" +
			"{\"cmd\":\"LIVE_OPEN_PLATFORM_LIKE\",\"data\":{\"uname\":\"fan\",\"like_count\":5}}",
	))

	// live.started plus the two feed messages
	kinds := collectKinds(t, sub, 3)
	assert.Equal(t, []events.Kind{events.KindLiveStarted, events.KindLiveEvent, events.KindLiveEvent}, kinds)

	select {
	case got := <-chats:
		assert.Equal(t, chat{"viewer", "draw a cat"}, got)
	case <-time.After(time.Second):
		t.Fatal("chat message was not forwarded")
	}

	// Only chat messages reach the chat sink
	select {
	case got := <-chats:
		t.Fatalf("unexpected chat forward %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	_, err := m.Stop(context.Background())
	require.NoError(t, err)
}

func TestManager_ConcurrentStartsSingleWinner(t *testing.T) {
	feed := &fakeFeed{}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Start(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	var winners int
	for err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSessionActive)
		}
	}
	assert.Equal(t, 1, winners)

	feed.mu.Lock()
	assert.Equal(t, 1, feed.opens)
	feed.mu.Unlock()

	_, err := m.Stop(context.Background())
	require.NoError(t, err)

	// Exactly one session's worth of lifecycle events
	kinds := collectKinds(t, sub, 2)
	assert.Equal(t, []events.Kind{events.KindLiveStarted, events.KindLiveStopped}, kinds)
}

type blockingFeed struct {
	opening chan struct{}
}

func (f *blockingFeed) Open(ctx context.Context) (*Session, FeedConn, error) {
	close(f.opening)
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func (f *blockingFeed) Keepalive(ctx context.Context, gameID string) error { return nil }
func (f *blockingFeed) End(ctx context.Context, gameID string) error       { return nil }

func TestManager_StopDuringStartCancelsOpen(t *testing.T) {
	feed := &blockingFeed{opening: make(chan struct{})}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	startErr := make(chan error, 1)
	go func() { startErr <- m.Start(context.Background()) }()

	select {
	case <-feed.opening:
	case <-time.After(2 * time.Second):
		t.Fatal("open was never attempted")
	}

	stopped, err := m.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, stopped)

	select {
	case err := <-startErr:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("start did not return after stop")
	}
	assert.Equal(t, StateIdle, m.Status().State)

	// The session never became active, so no lifecycle events
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_StoppedEventCarriesUptime(t *testing.T) {
	feed := &fakeFeed{}
	m, bus := newTestManager(t, feed)
	sub := bus.Subscribe(context.Background())

	require.NoError(t, m.Start(context.Background()))
	_, err := m.Stop(context.Background())
	require.NoError(t, err)

	var stoppedPayload *events.LiveStatusPayload
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.C:
			if ev.Kind == events.KindLiveStopped {
				stoppedPayload = ev.Data.(*events.LiveStatusPayload)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for lifecycle events")
		}
	}

	// The fake session started 30s in the past
	require.NotNil(t, stoppedPayload)
	assert.GreaterOrEqual(t, stoppedPayload.UptimeSeconds, int64(25))
}

func TestManager_StatusCarriesStartTime(t *testing.T) {
	feed := &fakeFeed{}
	m, _ := newTestManager(t, feed)

	require.NoError(t, m.Start(context.Background()))
	status := m.Status()
	assert.WithinDuration(t, time.Now(), status.StartedAt, time.Minute)

	_, err := m.Stop(context.Background())
	require.NoError(t, err)

	// Idle status carries no session details
	status = m.Status()
	assert.Zero(t, status.RoomID)
	assert.Empty(t, status.Streamer)
}
