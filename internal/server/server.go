// Package server exposes the HTTP surface of the pipeline: the carrier
// media-stream endpoints (WebSocket and form fallback), the voice and
// status webhooks, the dashboard push channel, the calls read API, and the
// operational probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/callsight/callsight/internal/health"
	"github.com/callsight/callsight/internal/push"
	"github.com/callsight/callsight/pkg/store"
)

// readHeaderTimeout bounds request header parsing. Read and write timeouts
// stay unset: both media-stream and dashboard connections are long-lived
// WebSockets.
const readHeaderTimeout = 10 * time.Second

// MediaSessions receives carrier media-stream events. *session.Manager
// satisfies it.
type MediaSessions interface {
	OnStart(ctx context.Context, streamID, callID string) error
	OnMedia(ctx context.Context, streamID, payload string)
	OnStop(ctx context.Context, streamID, callID string)
}

// CallEvents receives call lifecycle notifications from carrier webhooks.
// *dispatch.Dispatcher satisfies it.
type CallEvents interface {
	CallDiscovered(ctx context.Context, rec store.CallRecord)
	CallStatusChanged(ctx context.Context, callID, status string)
}

// Config carries the server's collaborators and settings.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// WebhookBaseURL is the externally visible base URL of this service,
	// used to build the media-stream URL in TwiML answers and to validate
	// webhook signatures. When empty, the URL is derived from the
	// incoming request's Host header.
	WebhookBaseURL string

	// TwilioAuthToken enables X-Twilio-Signature validation on the
	// webhook routes when non-empty.
	TwilioAuthToken string

	// Sessions handles media-stream start/media/stop events.
	Sessions MediaSessions

	// CallEvents handles webhook-driven call lifecycle changes.
	CallEvents CallEvents

	// Hub serves dashboard WebSocket subscribers.
	Hub *push.Hub

	// Calls and Transcripts back the read API.
	Calls       store.CallStore
	Transcripts store.TranscriptStore

	// Health, when non-nil, registers the /healthz and /readyz routes.
	Health *health.Handler

	// Metrics, when non-nil, is served at GET /metrics.
	Metrics http.Handler

	// Middleware, when non-nil, wraps the whole route set.
	Middleware func(http.Handler) http.Handler
}

// Server hosts all inbound HTTP traffic for the pipeline.
type Server struct {
	sessions   MediaSessions
	callEvents CallEvents
	hub        *push.Hub
	calls      store.CallStore
	transcript store.TranscriptStore

	webhookBaseURL string
	authToken      string
	validator      twilioclient.RequestValidator

	httpSrv *http.Server
}

// New validates cfg and builds a Server ready to Run.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, errors.New("server: listen address is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("server: media sessions handler is required")
	}
	if cfg.CallEvents == nil {
		return nil, errors.New("server: call events handler is required")
	}
	if cfg.Hub == nil {
		return nil, errors.New("server: push hub is required")
	}
	if cfg.Calls == nil {
		return nil, errors.New("server: call store is required")
	}
	if cfg.Transcripts == nil {
		return nil, errors.New("server: transcript store is required")
	}

	s := &Server{
		sessions:       cfg.Sessions,
		callEvents:     cfg.CallEvents,
		hub:            cfg.Hub,
		calls:          cfg.Calls,
		transcript:     cfg.Transcripts,
		webhookBaseURL: cfg.WebhookBaseURL,
		authToken:      cfg.TwilioAuthToken,
	}
	if cfg.TwilioAuthToken != "" {
		s.validator = twilioclient.NewRequestValidator(cfg.TwilioAuthToken)
	}

	var handler http.Handler = s.routes(cfg)
	if cfg.Middleware != nil {
		handler = cfg.Middleware(handler)
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

func (s *Server) routes(cfg Config) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/twilio/media-stream", s.handleMediaStreamWS)
	mux.HandleFunc("POST /api/twilio/media-stream", s.handleMediaStreamForm)
	mux.HandleFunc("POST /api/twilio/voice", s.handleVoiceWebhook)
	mux.HandleFunc("POST /api/twilio/status", s.handleStatusWebhook)
	mux.HandleFunc("GET /ws/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/calls", s.handleListCalls)
	mux.HandleFunc("GET /api/calls/{callID}", s.handleGetCall)
	mux.HandleFunc("GET /api/calls/{callID}/transcript", s.handleGetTranscript)

	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	return mux
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves until ctx is cancelled or the listener fails. On cancellation
// it drains in-flight requests; hijacked WebSocket connections are closed
// by their owning components.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen on %s: %w", s.httpSrv.Addr, err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown stops accepting new connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
