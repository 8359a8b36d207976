// ABOUTME: Event model for the gateway's outbound stream
// ABOUTME: Defines the closed set of event kinds and their JSON payloads

package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of an outbound event. The set is closed:
// consumers dispatch on these values and unknown kinds would be silently
// ignored by SSE clients.
type Kind string

const (
	// KindConversation carries a text reply to a command.
	KindConversation Kind = "conversation"
	// KindArtifact announces a generated binary artifact on disk.
	KindArtifact Kind = "artifact"
	// KindLiveStarted signals a live session reached the Active state.
	KindLiveStarted Kind = "live.started"
	// KindLiveStopped signals a live session returned to Idle.
	KindLiveStopped Kind = "live.stopped"
	// KindLiveStatus carries a point-in-time live session snapshot.
	KindLiveStatus Kind = "live.status"
	// KindLiveEvent carries a single message from the live feed.
	KindLiveEvent Kind = "live.event"
	// KindError reports an asynchronous command failure.
	KindError Kind = "error"
	// KindSystemReady is published once when the gateway finishes startup.
	KindSystemReady Kind = "system.ready"
)

// Event is a single outbound event. Data holds the kind-specific payload
// and is serialized as the SSE data line.
type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"-"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// ConversationPayload is the data for conversation events.
type ConversationPayload struct {
	Origin string `json:"origin"`
	Input  string `json:"input,omitempty"`
	Reply  string `json:"reply"`
}

// ArtifactPayload is the data for artifact events.
type ArtifactPayload struct {
	Intent      string `json:"intent"`
	Path        string `json:"path"`
	MediaType   string `json:"media_type"`
	Size        int64  `json:"size"`
	Description string `json:"description,omitempty"`
}

// LiveStatusPayload is the data for live.started, live.stopped, and
// live.status events.
type LiveStatusPayload struct {
	State         string    `json:"state"`
	RoomID        int64     `json:"room_id,omitempty"`
	Streamer      string    `json:"streamer,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	UptimeSeconds int64     `json:"uptime_seconds,omitempty"`
}

// LiveEventPayload is the data for live.event events. Type distinguishes
// feed message kinds (chat, gift, enter, like).
type LiveEventPayload struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Text string `json:"text,omitempty"`
	Gift string `json:"gift,omitempty"`
	Num  int    `json:"num,omitempty"`
}

// ErrorPayload is the data for error events.
type ErrorPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ReadyPayload is the data for the system.ready event.
type ReadyPayload struct {
	Version string `json:"version,omitempty"`
}

// New creates an event with a fresh ID and the current time.
func New(kind Kind, data any) *Event {
	return &Event{
		ID:   uuid.New().String(),
		Kind: kind,
		At:   time.Now().UTC(),
		Data: data,
	}
}
