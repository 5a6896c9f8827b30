package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mattjoyce/grhooks/internal/config"
	"github.com/mattjoyce/grhooks/internal/log"
	"github.com/mattjoyce/grhooks/internal/metrics"
	"github.com/mattjoyce/grhooks/internal/origin"
	"github.com/mattjoyce/grhooks/internal/render"
)

// Server represents the webhook HTTP server.
type Server struct {
	config  Config
	routes  Routes
	runner  Runner
	logger  *slog.Logger
	limiter *rate.Limiter
	server  *http.Server
}

// New creates a new webhook server instance.
func New(cfg Config, routes Routes, runner Runner, logger *slog.Logger) *Server {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = config.DefaultMaxBodySize
	}
	if logger == nil {
		logger = log.WithComponent("webhook")
	}

	s := &Server{
		config: cfg,
		routes: routes,
		runner: runner,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return s
}

// Start starts the webhook HTTP server and blocks until ctx is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: the response is written after the command exits.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "routes", s.routes.Len())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get(config.HealthPath, s.handleHealth)
	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Post("/*", s.handleWebhook)
	})

	return r
}

// loggingMiddleware logs HTTP requests (excludes payloads and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"delivery_id", ww.Header().Get(DeliveryHeader),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			metrics.DeliveriesTotal.WithLabelValues("unknown", outcome(errRateLimited)).Inc()
			s.respondError(w, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Grhooks-Routes", strconv.Itoa(s.routes.Len()))
	s.respondText(w, http.StatusOK, "ok")
}

// handleWebhook runs one delivery through the pipeline: origin detection,
// header validation, routing, signature verification, event filtering and
// dispatch, in that order. The first failing step decides the response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	d := &Delivery{ID: uuid.NewString()}
	w.Header().Set(DeliveryHeader, d.ID)
	logger := s.logger.With("delivery_id", d.ID, "path", r.URL.Path)

	out, err := s.process(r, d, logger)
	metrics.DeliveriesTotal.WithLabelValues(d.originLabel(), outcome(err)).Inc()
	if err != nil {
		status, _ := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("webhook dispatch failed", "event", d.EventType, "error", err)
		} else {
			logger.Warn("webhook rejected", "status", status, "event", d.EventType, "error", err)
		}
		s.respondError(w, err)
		return
	}

	logger.Info("webhook dispatched", "event", d.EventType, "origin", d.Origin.String(), "target", d.Hook.Target())
	s.respondText(w, http.StatusOK, out)
}

func (s *Server) process(r *http.Request, d *Delivery, logger *slog.Logger) (string, error) {
	detected, err := origin.Detect(r.Header)
	if err != nil {
		return "", err
	}
	d.Origin, d.detected = detected, true
	if err := detected.ValidateHeaders(r.Header); err != nil {
		return "", err
	}

	hook, ok := s.routes.Find(r.URL.Path)
	if !ok {
		return "", &routeNotFoundError{Path: r.URL.Path}
	}
	d.Hook = hook

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > s.config.MaxBodySize {
		return "", errBodyTooLarge
	}
	d.Body = body

	// The definition's dialect decides how the delivery is authenticated.
	d.EventType, err = hook.Origin.EventType(r.Header)
	if err != nil {
		return "", err
	}
	if hook.HasSecret() {
		secret := render.Secret(hook.Secret, d.EventType)
		if err := hook.Origin.VerifySignature(r.Header, secret, d.Body); err != nil {
			return "", err
		}
	}

	if !hook.AllowsEvent(d.EventType) {
		return "", &eventNotAllowedError{EventType: d.EventType}
	}

	d.Namespace, err = render.Build(d.EventType, d.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	logger.Debug("payload accepted", "event", d.EventType, "bytes", len(d.Body), "variables", len(d.Namespace))

	// A client hanging up must not kill a command that already started.
	return s.runner.Execute(context.WithoutCancel(r.Context()), d.Hook, d.Namespace)
}

// respondText sends a plain text response.
func (s *Server) respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// respondError sends the client-facing message for err.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	s.respondText(w, status, msg)
}
