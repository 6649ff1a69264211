// Package server hosts the built dist directory over HTTP for the runtime
// loader: the master manifest, per-speaker sprite manifests, and blobs, plus
// a small status endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"soundloom/internal/logging"
	"soundloom/internal/manifest"
)

// Status is the /api/status payload.
type Status struct {
	DistDir       string   `json:"distDir"`
	ManifestFound bool     `json:"manifestFound"`
	GeneratedAt   string   `json:"generatedAt,omitempty"`
	RunID         string   `json:"runId,omitempty"`
	Speakers      []string `json:"speakers,omitempty"`
}

// Server serves the dist directory and status API.
type Server struct {
	bind    string
	distDir string
	logger  *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New constructs a server over the given dist directory.
func New(bind, distDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		bind:    bind,
		distDir: distDir,
		logger:  logging.WithComponent(logger, "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.Handle("/", http.FileServer(http.Dir(distDir)))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start begins listening and serving. The server shuts down gracefully when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.bind, err)
	}
	s.listener = listener

	go func() {
		if serveErr := s.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("server error", "error", serveErr)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving dist directory",
		"address", listener.Addr().String(), "dist", s.distDir)
	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := Status{DistDir: s.distDir}
	master, err := manifest.Load(filepath.Join(s.distDir, manifest.Filename))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if master != nil {
		status.ManifestFound = true
		status.GeneratedAt = master.GeneratedAt
		status.RunID = master.RunID
		status.Speakers = master.Speakers()
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
