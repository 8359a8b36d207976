// ABOUTME: Command routing and asynchronous execution pipeline
// ABOUTME: Classifies input, runs the capability, and publishes the outcome

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/musehq/muse-gateway/internal/artifact"
	"github.com/musehq/muse-gateway/internal/capability"
	"github.com/musehq/muse-gateway/internal/events"
	"github.com/musehq/muse-gateway/internal/intent"
	"github.com/musehq/muse-gateway/internal/live"
)

// Command actions accepted by the gateway.
const (
	ActionCommand    = "command"
	ActionLiveStart  = "live_start"
	ActionLiveStop   = "live_stop"
	ActionLiveStatus = "live_status"
)

// ErrUnknownAction is returned for actions outside the accepted set.
var ErrUnknownAction = errors.New("unknown action")

// ErrLiveDisabled is returned for live actions when no live feed is
// configured.
var ErrLiveDisabled = errors.New("live feed is not configured")

// Command is one submitted gateway command.
type Command struct {
	Action string `json:"action"`
	Input  string `json:"input"`
}

// Options wires the router's collaborators. Capability executors left nil
// are reported as unconfigured when routed to. Live may be nil when the
// live feed is disabled.
type Options struct {
	Resolver     *intent.Resolver
	Conversation capability.Executor
	Image        capability.Executor
	Music        capability.Executor
	Video        capability.Executor
	Writer       *artifact.Writer
	Index        *artifact.Store
	Live         *live.Manager
	Bus          *events.Bus
	Logger       *slog.Logger
}

// Router validates commands synchronously and executes them on their own
// goroutines. Every execution ends in exactly one published event, either
// the outcome or an error.
type Router struct {
	resolver *intent.Resolver
	writer   *artifact.Writer
	index    *artifact.Store
	live     *live.Manager
	bus      *events.Bus
	logger   *slog.Logger

	executors map[intent.Intent]capability.Executor
}

// NewRouter creates a router from the given options.
func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		resolver: opts.Resolver,
		writer:   opts.Writer,
		index:    opts.Index,
		live:     opts.Live,
		bus:      opts.Bus,
		logger:   logger.With("component", "orchestrator"),
		executors: map[intent.Intent]capability.Executor{
			intent.Conversation: opts.Conversation,
			intent.Image:        opts.Image,
			intent.Music:        opts.Music,
			intent.Video:        opts.Video,
		},
	}
}

// Handle validates a command and schedules its execution. A nil return
// means the command was accepted; the outcome arrives on the event bus.
// ctx should outlive the submitting request.
func (r *Router) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionCommand:
		go r.execute(ctx, "api", cmd.Input)
	case ActionLiveStart:
		if r.live == nil {
			return ErrLiveDisabled
		}
		go r.liveStart(ctx)
	case ActionLiveStop:
		if r.live == nil {
			return ErrLiveDisabled
		}
		go r.liveStop(ctx)
	case ActionLiveStatus:
		if r.live == nil {
			return ErrLiveDisabled
		}
		go r.liveStatus()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return nil
}

// HandleLiveChat feeds a chat message from the live room back through the
// command pipeline. Empty messages are ignored.
func (r *Router) HandleLiveChat(user, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	r.logger.Info("handling live chat command", "user", user, "message", trimmed)
	go r.execute(context.Background(), "live", trimmed)
}

// execute runs the classify-execute-publish pipeline for one input.
func (r *Router) execute(ctx context.Context, origin, input string) {
	resolved := r.resolver.Classify(ctx, input)
	r.logger.Info("command classified", "origin", origin, "intent", string(resolved))

	if resolved == intent.Help {
		r.publishConversation(origin, input, r.helpMessage())
		return
	}

	// Unknown routes to conversation, mirroring the keyword fallback
	if resolved == intent.Unknown {
		resolved = intent.Conversation
	}

	executor := r.executors[resolved]
	if executor == nil {
		r.publishError(origin, "execute", fmt.Sprintf("capability %q is not configured", string(resolved)))
		return
	}

	out, err := executor.Execute(ctx, input)
	if err != nil {
		r.logger.Warn("capability execution failed", "intent", string(resolved), "error", err)
		r.publishError(origin, "execute", err.Error())
		return
	}

	if out.Binary == nil {
		r.publishConversation(origin, input, out.Text)
		return
	}

	ref, err := r.writer.Persist(string(resolved), out.Binary)
	if err != nil {
		r.logger.Error("artifact persistence failed", "intent", string(resolved), "error", err)
		r.publishError(origin, "persist", err.Error())
		return
	}
	if r.index != nil {
		if err := r.index.Save(ctx, ref); err != nil {
			r.logger.Warn("artifact indexing failed", "path", ref.Path, "error", err)
		}
	}

	r.bus.Publish(events.New(events.KindArtifact, &events.ArtifactPayload{
		Intent:      ref.Intent,
		Path:        ref.Path,
		MediaType:   ref.MediaType,
		Size:        ref.Size,
		Description: ref.Description,
	}))
}

func (r *Router) liveStart(ctx context.Context) {
	if err := r.live.Start(ctx); err != nil {
		// Covers ErrSessionActive too; the manager itself never emits a
		// second live.started
		r.publishError("api", "live", err.Error())
	}
}

func (r *Router) liveStop(ctx context.Context) {
	stopped, err := r.live.Stop(ctx)
	if err != nil {
		r.publishError("api", "live", err.Error())
		return
	}
	if !stopped {
		// Nothing was running; answer with the current (idle) status
		r.liveStatus()
	}
}

func (r *Router) liveStatus() {
	status := r.live.Status()
	payload := &events.LiveStatusPayload{
		State:     string(status.State),
		RoomID:    status.RoomID,
		Streamer:  status.Streamer,
		StartedAt: status.StartedAt,
	}
	if !status.StartedAt.IsZero() {
		payload.UptimeSeconds = int64(time.Since(status.StartedAt).Seconds())
	}
	r.bus.Publish(events.New(events.KindLiveStatus, payload))
}

func (r *Router) publishConversation(origin, input, reply string) {
	r.bus.Publish(events.New(events.KindConversation, &events.ConversationPayload{
		Origin: origin,
		Input:  input,
		Reply:  reply,
	}))
}

func (r *Router) publishError(origin, stage, message string) {
	r.bus.Publish(events.New(events.KindError, &events.ErrorPayload{
		Stage:   stage,
		Message: fmt.Sprintf("[%s] %s", origin, message),
	}))
}

// helpMessage lists the available capabilities and command forms.
func (r *Router) helpMessage() string {
	lines := []string{
		"Here is what I can do:",
		"",
	}

	capabilities := []struct {
		key  intent.Intent
		desc string
	}{
		{intent.Conversation, "free-form conversation and Q&A"},
		{intent.Image, "illustrations and design sketches"},
		{intent.Music, "music generation from a prompt"},
		{intent.Video, "short clips via the video service"},
	}
	for _, c := range capabilities {
		status := "not configured"
		if r.executors[c.key] != nil {
			status = "enabled"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", string(c.key), c.desc, status))
	}

	lines = append(lines,
		"",
		`Send commands as JSON: {"action":"command","input":"draw a cyberpunk cat"}`,
	)
	if r.live != nil {
		lines = append(lines,
			"",
			"Live commands:",
			`- {"action":"live_start"} connect to the configured live room`,
			`- {"action":"live_stop"} disconnect`,
			`- {"action":"live_status"} current session state`,
		)
	}
	return strings.Join(lines, "\n")
}
