// ABOUTME: Live feed abstraction and its websocket implementation
// ABOUTME: Opens sessions via the control API and streams decoded messages

package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Session describes an open live feed session.
type Session struct {
	GameID    string
	RoomID    int64
	Streamer  string
	StartedAt time.Time
}

// FeedConn is an authenticated connection to the live feed.
type FeedConn interface {
	// ReadBatch blocks until the next batch of event messages arrives.
	// Control frames are consumed internally.
	ReadBatch() ([]*Message, error)
	// Heartbeat sends the connection-level heartbeat frame.
	Heartbeat() error
	Close() error
}

// Feed opens live sessions and maintains them against the platform.
type Feed interface {
	Open(ctx context.Context) (*Session, FeedConn, error)
	Keepalive(ctx context.Context, gameID string) error
	End(ctx context.Context, gameID string) error
}

// platformFeed is the production Feed backed by the control API and a
// websocket connection.
type platformFeed struct {
	control *ControlClient
	logger  *slog.Logger
}

// NewFeed creates the production feed.
func NewFeed(control *ControlClient, logger *slog.Logger) Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &platformFeed{
		control: control,
		logger:  logger.With("component", "live-feed"),
	}
}

func (f *platformFeed) Open(ctx context.Context) (*Session, FeedConn, error) {
	start, err := f.control.Start(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("starting live session: %w", err)
	}

	wsURL := start.WSSLinks[0]
	if !strings.HasSuffix(wsURL, "/sub") {
		wsURL = strings.TrimSuffix(wsURL, "/") + "/sub"
	}

	f.logger.Info("connecting to live feed", "url", wsURL, "game_id", start.GameID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		// Session was opened on the platform side; release it
		if endErr := f.control.End(ctx, start.GameID); endErr != nil {
			f.logger.Warn("releasing session after dial failure", "error", endErr)
		}
		return nil, nil, fmt.Errorf("dialing live feed: %w", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, encodePacket(opAuth, []byte(start.AuthBody))); err != nil {
		conn.Close()
		if endErr := f.control.End(ctx, start.GameID); endErr != nil {
			f.logger.Warn("releasing session after auth failure", "error", endErr)
		}
		return nil, nil, fmt.Errorf("sending auth frame: %w", err)
	}

	session := &Session{
		GameID:    start.GameID,
		RoomID:    start.RoomID,
		Streamer:  start.Streamer,
		StartedAt: time.Now(),
	}
	return session, &wsConn{conn: conn, logger: f.logger}, nil
}

func (f *platformFeed) Keepalive(ctx context.Context, gameID string) error {
	return f.control.Heartbeat(ctx, gameID)
}

func (f *platformFeed) End(ctx context.Context, gameID string) error {
	return f.control.End(ctx, gameID)
}

type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

func (c *wsConn) ReadBatch() ([]*Message, error) {
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		packets, err := decodePackets(payload)
		if err != nil {
			c.logger.Warn("dropping undecodable feed frame", "error", err)
			continue
		}

		var messages []*Message
		for _, p := range packets {
			switch p.operation {
			case opAuthReply:
				c.logger.Info("live feed authenticated")
			case opHeartbeatReply:
				c.logger.Debug("live feed heartbeat acknowledged")
			case opSendEvent:
				messages = append(messages, parseMessages(p.body)...)
			default:
				c.logger.Debug("unhandled feed operation", "operation", p.operation)
			}
		}
		if len(messages) > 0 {
			return messages, nil
		}
	}
}

func (c *wsConn) Heartbeat() error {
	return c.conn.WriteMessage(websocket.BinaryMessage, encodePacket(opHeartbeat, nil))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
