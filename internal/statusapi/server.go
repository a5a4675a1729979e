package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/logging"
	"dispatchscan/internal/session"
)

// Status is the payload of GET /api/status.
type Status struct {
	SessionID    string           `json:"session_id"`
	StartedAt    time.Time        `json:"started_at"`
	Session      session.Snapshot `json:"session"`
	Capture      string           `json:"capture_state"`
	CaptureName  string           `json:"capture_source,omitempty"`
	Busy         bool             `json:"busy"`
	AwaitingNext bool             `json:"awaiting_next"`
	TodayCount   int              `json:"today_count"`
}

// ScansResponse is the payload of GET /api/scans.
type ScansResponse struct {
	TodayCount int                   `json:"today_count"`
	Scans      []dispatch.ScanRecord `json:"scans"`
}

// NextResponse is the payload of POST /api/next.
type NextResponse struct {
	Released bool `json:"released"`
}

// Provider supplies the live session state the API reports.
type Provider interface {
	Status() Status
	RecentScans() []dispatch.ScanRecord
	ReadyForNext() bool
}

// Server is the status HTTP server.
type Server struct {
	bind     string
	token    string
	provider Provider
	metrics  http.Handler
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires a bearer token on every route except /healthz.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = strings.TrimSpace(token)
	}
}

// WithMetrics mounts handler at /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New builds a server for bind. An empty bind disables the API and returns nil.
func New(bind string, provider Provider, opts ...Option) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" || provider == nil {
		return nil
	}
	s := &Server{bind: bind, provider: provider}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "status-api")
	s.server = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.token))
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/scans", s.handleScans)
		r.Post("/api/next", s.handleNext)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics)
		}
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("status api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "status api server error", "status_api_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check status_bind is free and restart the session"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("status api listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.provider.Status())
}

func (s *Server) handleScans(w http.ResponseWriter, _ *http.Request) {
	scans := s.provider.RecentScans()
	if scans == nil {
		scans = []dispatch.ScanRecord{}
	}
	s.writeJSON(w, http.StatusOK, ScansResponse{
		TodayCount: s.provider.Status().TodayCount,
		Scans:      scans,
	})
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	released := s.provider.ReadyForNext()
	s.logger.Info("ready for next requested", logging.Bool("released", released))
	s.writeJSON(w, http.StatusOK, NextResponse{Released: released})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
