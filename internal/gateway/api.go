// ABOUTME: HTTP handlers for the command endpoint and the SSE event stream
// ABOUTME: Commands are accepted with 202; outcomes arrive on the stream

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/musehq/muse-gateway/internal/events"
	"github.com/musehq/muse-gateway/internal/orchestrator"
)

// sseKeepaliveInterval is how often a comment line is written to an idle
// event stream so intermediaries do not drop the connection.
const sseKeepaliveInterval = 15 * time.Second

// handleEvents streams gateway events to the client over SSE. The
// subscription lives as long as the request; a client that falls too far
// behind is evicted by the bus and sees its stream end.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := g.bus.Subscribe(r.Context())
	if sub == nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, "gateway is shutting down")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	g.logger.Info("event stream opened", "sub_id", sub.ID, "remote", r.RemoteAddr)
	defer g.logger.Info("event stream closed", "sub_id", sub.ID)

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				g.logger.Warn("writing event to stream", "sub_id", sub.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent serializes one event as an SSE frame. The event kind
// becomes the SSE event name so clients can dispatch with listeners.
func writeSSEEvent(w http.ResponseWriter, ev *events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}

// handleCommand accepts a command for asynchronous execution. Validation
// failures are returned synchronously; everything after acceptance is
// reported on the event stream.
func (g *Gateway) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var cmd orchestrator.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "malformed command body")
		return
	}

	// Execution must outlive the submitting request
	err := g.router.Handle(context.WithoutCancel(r.Context()), cmd)
	switch {
	case errors.Is(err, orchestrator.ErrUnknownAction), errors.Is(err, orchestrator.ErrLiveDisabled):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		g.logger.Error("command handling failed", "action", cmd.Action, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if !g.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
