// ABOUTME: Gateway wiring and HTTP server lifecycle management
// ABOUTME: Assembles auth, bus, capabilities, live session, and router from config

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/musehq/muse-gateway/internal/artifact"
	"github.com/musehq/muse-gateway/internal/auth"
	"github.com/musehq/muse-gateway/internal/capability"
	"github.com/musehq/muse-gateway/internal/config"
	"github.com/musehq/muse-gateway/internal/events"
	"github.com/musehq/muse-gateway/internal/intent"
	"github.com/musehq/muse-gateway/internal/live"
	"github.com/musehq/muse-gateway/internal/orchestrator"
)

// Version is reported in the system.ready event.
const Version = "0.3.0"

const (
	defaultChatModel  = "gpt-4o-mini"
	defaultImageModel = "dall-e-3"

	shutdownTimeout = 5 * time.Second
)

// Gateway owns the HTTP server and every long-lived component behind it.
type Gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	guard  *auth.Guard
	bus    *events.Bus
	router *orchestrator.Router
	live   *live.Manager
	index  *artifact.Store

	httpServer *http.Server
	ready      atomic.Bool
}

// New assembles a gateway from configuration. Capabilities whose provider
// sections are absent stay nil and are reported as unconfigured when a
// command routes to them.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		cfg:    cfg,
		logger: logger.With("component", "gateway"),
		guard:  auth.NewGuard(cfg.Auth.AccessKey, cfg.Auth.SecretKey, cfg.Auth.SignatureTTL, cfg.Auth.ReplayCacheSize),
		bus:    events.NewBus(logger),
	}

	var conversation, image capability.Executor
	var classifier intent.Classifier
	if oc := cfg.Providers.OpenAI; oc != nil {
		opts := []option.RequestOption{option.WithAPIKey(oc.APIKey)}
		if oc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(oc.BaseURL))
		}
		client := openai.NewClient(opts...)

		chatModel := oc.ChatModel
		if chatModel == "" {
			chatModel = defaultChatModel
		}
		imageModel := oc.ImageModel
		if imageModel == "" {
			imageModel = defaultImageModel
		}

		conversation = capability.NewConversation(client, chatModel, oc.Preamble)
		image = capability.NewImageGenerator(client, imageModel)

		if cfg.Providers.Intent.Provider == "openai" {
			intentModel := cfg.Providers.Intent.Model
			if intentModel == "" {
				intentModel = chatModel
			}
			classifier = intent.NewModelClassifier(client, intentModel)
		}
	}

	var music, video capability.Executor
	if mc := cfg.Providers.Music; mc != nil && mc.Endpoint != "" {
		music = capability.NewMusicGenerator(mc.Endpoint, mc.APIKey, mc.Voice)
	}
	if vc := cfg.Providers.Video; vc != nil && vc.Endpoint != "" {
		video = capability.NewVideoGenerator(vc.Endpoint, vc.APIKey)
	}

	writer, err := artifact.NewWriter(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("creating artifact writer: %w", err)
	}
	if cfg.Artifacts.IndexPath != "" {
		g.index, err = artifact.NewStore(cfg.Artifacts.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("opening artifact index: %w", err)
		}
	}

	if cfg.Live.Enabled {
		control := live.NewControlClient(cfg.Live)
		feed := live.NewFeed(control, logger)
		g.live = live.NewManager(feed, g.bus, cfg.Live.HeartbeatInterval, live.NewRenderer(), logger)
	}

	g.router = orchestrator.NewRouter(orchestrator.Options{
		Resolver:     intent.NewResolver(classifier, logger),
		Conversation: conversation,
		Image:        image,
		Music:        music,
		Video:        video,
		Writer:       writer,
		Index:        g.index,
		Live:         g.live,
		Bus:          g.bus,
		Logger:       logger,
	})
	if g.live != nil {
		g.live.OnChat = g.router.HandleLiveChat
	}

	requireAuth := auth.Middleware(g.guard)
	mux := http.NewServeMux()
	mux.Handle("/events", requireAuth(http.HandlerFunc(g.handleEvents)))
	mux.Handle("/command", requireAuth(http.HandlerFunc(g.handleCommand)))
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	g.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails. On cancellation the gateway shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.cfg.Server.HTTPAddr, err)
	}

	g.logger.Info("http server listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	g.ready.Store(true)
	g.bus.Publish(events.New(events.KindSystemReady, &events.ReadyPayload{Version: Version}))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
		return g.gracefulShutdown()
	}
}

// gracefulShutdown bounds the wind-down so a stuck live session or a
// hung client cannot keep the process alive.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, ends any live session, and releases
// component resources. Errors are collected rather than short-circuiting
// so every component gets its chance to close.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.ready.Store(false)

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = appendCloseError(errs, "http server", err)
	}
	if g.live != nil {
		if _, err := g.live.Stop(ctx); err != nil {
			errs = appendCloseError(errs, "live session", err)
		}
	}

	g.bus.Close()
	g.guard.Close()

	if g.index != nil {
		if err := g.index.Close(); err != nil {
			errs = appendCloseError(errs, "artifact index", err)
		}
	}

	g.logger.Info("gateway stopped")
	return errors.Join(errs...)
}

func appendCloseError(errs []error, component string, err error) []error {
	return append(errs, fmt.Errorf("closing %s: %w", component, err))
}
