// Package debugserver exposes the song runner's clocks and sync statistics over
// HTTP while a song plays.
package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/zurustar/songsync/pkg/logger"
	"github.com/zurustar/songsync/pkg/playback"
)

// StatusSource provides the snapshot served by /status. *playback.SongRunner
// implements it.
type StatusSource interface {
	Snapshot() playback.Snapshot
}

// Server serves GET /status and GET /healthz.
type Server struct {
	src     StatusSource
	handler http.Handler
	srv     *http.Server
	log     *slog.Logger
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New creates a server reading from src.
func New(src StatusSource, opts ...Option) *Server {
	s := &Server{
		src:     src,
		log:     logger.GetLogger(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Component(s.log, "debugserver")

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.handler = cors.Default().Handler(router)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr has port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Debug server stopped", "error", err)
		}
	}()

	s.log.Info("Debug server listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Shutdown stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.src.Snapshot()); err != nil {
		s.log.Warn("Failed to encode status", "error", err)
	}
}

type healthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Seconds(),
	})
}
