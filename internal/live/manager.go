// ABOUTME: Live session lifecycle state machine
// ABOUTME: Owns the feed connection, heartbeats, and session event publishing

package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/musehq/muse-gateway/internal/events"
)

// State is the live session lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

// ErrSessionActive is returned by Start when a session already exists.
var ErrSessionActive = errors.New("live session already active")

// connHeartbeatInterval is the fixed websocket-level heartbeat cadence
// required by the feed protocol.
const connHeartbeatInterval = 20 * time.Second

// Status is a point-in-time snapshot of the session state.
type Status struct {
	State     State
	RoomID    int64
	Streamer  string
	StartedAt time.Time
}

// Manager runs at most one live session at a time. The run goroutine is
// the sole owner of the transition back to Idle and of the live.stopped
// event, so the session terminates exactly once no matter whether an
// explicit stop or a connection failure ends it.
type Manager struct {
	feed      Feed
	bus       *events.Bus
	logger    *slog.Logger
	keepalive time.Duration
	renderer  *Renderer

	// OnChat receives chat messages from the feed. Set before Start.
	OnChat func(user, text string)

	mu      sync.Mutex
	state   State
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a manager over the given feed. renderer may be nil
// to disable console output.
func NewManager(feed Feed, bus *events.Bus, keepalive time.Duration, renderer *Renderer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		feed:      feed,
		bus:       bus,
		logger:    logger.With("component", "live"),
		keepalive: keepalive,
		renderer:  renderer,
		state:     StateIdle,
	}
}

// Start opens a live session. Returns ErrSessionActive if one is already
// open or opening; no event is published in that case. A Stop issued
// while the open is still in flight cancels it.
func (m *Manager) Start(ctx context.Context) error {
	openCtx, openCancel := context.WithCancel(ctx)
	starting := make(chan struct{})

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		openCancel()
		return ErrSessionActive
	}
	m.state = StateStarting
	m.cancel = openCancel
	m.done = starting
	m.mu.Unlock()

	session, conn, err := m.feed.Open(openCtx)
	openCancel()

	m.mu.Lock()
	stopRequested := m.state == StateStopping
	if err != nil || stopRequested {
		m.state = StateIdle
		m.session = nil
		m.cancel = nil
		m.done = nil
		m.mu.Unlock()

		if err == nil {
			// Stop won the race; release the session that just opened
			conn.Close()
			endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if endErr := m.feed.End(endCtx, session.GameID); endErr != nil {
				m.logger.Warn("ending live session", "error", endErr)
			}
			cancel()
			err = context.Canceled
		}
		close(starting)
		return err
	}

	// The session outlives the request that started it
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.state = StateActive
	m.session = session
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info("live session started",
		"game_id", session.GameID,
		"room_id", session.RoomID,
		"streamer", session.Streamer)
	m.publishSession(events.KindLiveStarted, session)

	go m.run(runCtx, session, conn, done)
	return nil
}

// Stop ends the active session and waits for it to wind down, bounded by
// ctx. Stopping an idle manager is a no-op reported via the bool result.
func (m *Manager) Stop(ctx context.Context) (bool, error) {
	m.mu.Lock()
	switch m.state {
	case StateIdle:
		m.mu.Unlock()
		return false, nil
	case StateStopping:
		// Another stop is already in flight; just wait on it
	default:
		// Active, or Starting with the open still in flight; cancelling
		// the context covers both
		m.state = StateStopping
		m.cancel()
	}
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// Status returns the current session snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{State: m.state}
	if m.session != nil {
		s.RoomID = m.session.RoomID
		s.Streamer = m.session.Streamer
		s.StartedAt = m.session.StartedAt
	}
	return s
}

// run drives one session to completion. Its deferred cleanup is the only
// place the manager returns to Idle and publishes live.stopped.
func (m *Manager) run(ctx context.Context, session *Session, conn FeedConn, done chan struct{}) {
	defer func() {
		conn.Close()

		endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.feed.End(endCtx, session.GameID); err != nil {
			m.logger.Warn("ending live session", "error", err)
		}
		cancel()

		m.mu.Lock()
		m.state = StateIdle
		m.session = nil
		m.cancel = nil
		m.done = nil
		m.mu.Unlock()

		m.logger.Info("live session stopped", "game_id", session.GameID)
		m.publishSession(events.KindLiveStopped, session)
		close(done)
	}()

	batches := make(chan []*Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			msgs, err := conn.ReadBatch()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case batches <- msgs:
			case <-ctx.Done():
				return
			}
		}
	}()

	connTicker := time.NewTicker(connHeartbeatInterval)
	defer connTicker.Stop()
	keepaliveTicker := time.NewTicker(m.keepalive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-connTicker.C:
			if err := conn.Heartbeat(); err != nil {
				m.logger.Warn("sending feed heartbeat", "error", err)
				return
			}
		case <-keepaliveTicker.C:
			if err := m.feed.Keepalive(ctx, session.GameID); err != nil {
				m.logger.Warn("session keepalive failed", "error", err)
			}
		case err := <-readErr:
			if !errors.Is(err, context.Canceled) {
				m.logger.Warn("live feed disconnected", "error", err)
			}
			return
		case msgs := <-batches:
			for _, msg := range msgs {
				m.handleMessage(msg)
			}
		}
	}
}

func (m *Manager) handleMessage(msg *Message) {
	m.bus.Publish(events.New(events.KindLiveEvent, msg.Payload()))
	if m.renderer != nil {
		m.renderer.Render(msg)
	}
	if msg.Cmd == cmdChat && m.OnChat != nil {
		m.OnChat(msg.User(), msg.ChatText())
	}
}

func (m *Manager) publishSession(kind events.Kind, session *Session) {
	payload := &events.LiveStatusPayload{
		State:     string(m.Status().State),
		RoomID:    session.RoomID,
		Streamer:  session.Streamer,
		StartedAt: session.StartedAt,
	}
	if kind == events.KindLiveStopped {
		payload.UptimeSeconds = int64(time.Since(session.StartedAt).Seconds())
	}
	m.bus.Publish(events.New(kind, payload))
}
