package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"questcal/internal/config"
	appLog "questcal/internal/log"
	"questcal/internal/model"
	"questcal/internal/schedule"
	"questcal/internal/tz"
	"questcal/internal/watch"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Server exposes the goal engine over HTTP.
type Server struct {
	cfg     *config.Config
	mux     *http.ServeMux
	zones   tz.Resolver
	builder *schedule.Builder
	metrics *metrics
	watcher *watch.Watcher
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher exposes the watcher's latest result on /api/watch.
func WithWatcher(w *watch.Watcher) Option {
	return func(s *Server) { s.watcher = w }
}

// WithZones overrides the time-zone resolver.
func WithZones(z tz.Resolver) Option {
	return func(s *Server) { s.zones = z }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		zones:   tz.Default(),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = schedule.NewBuilder(s.zones, cfg.DefaultDurationMin)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="questcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, opts ...Option) error {
	s := NewServer(cfg, opts...)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.handler())

	s.handle("POST /api/normalize", "normalize", s.handleNormalize)
	s.handle("POST /api/occurrences", "occurrences", s.handleOccurrences)
	s.handle("POST /api/occurrences.ics", "occurrences_ics", s.handleOccurrencesICS)
	s.handle("POST /api/preview", "preview", s.handlePreview)
	s.handle("POST /api/weeks", "weeks", s.handleWeeks)
	s.handle("POST /api/validate", "validate", s.handleValidate)
	s.handle("POST /api/verification/plan", "verification_plan", s.handleVerificationPlan)
	s.handle("POST /api/verification/validate", "verification_validate", s.handleVerificationValidate)
	s.handle("GET /api/watch", "watch", s.handleWatch)
}

// handle registers h under pattern and records request metrics as route.
func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.metrics.instrument(route, h))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// decodeJSON reads a bounded JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// statusFor maps a domain error to an HTTP status. Contract violations
// named by a sentinel are the caller's fault; anything else the input
// could not be processed into.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidPeriod),
		errors.Is(err, model.ErrInvalidSpec),
		errors.Is(err, tz.ErrUnknownZone):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeDomainError(w http.ResponseWriter, route string, err error) {
	appLog.Debug("api request rejected", "route", route, "error", err.Error())
	writeError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
