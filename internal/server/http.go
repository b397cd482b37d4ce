// Package server exposes the local HTTP control API: session start/stop,
// status, health, Prometheus metrics, and the display WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rahulrshetty45/CluelyClone/internal/emit"
	"github.com/rahulrshetty45/CluelyClone/internal/session"
)

// Server is the HTTP control server. It binds to a local address; nothing
// here is meant to be reachable off-host.
type Server struct {
	manager *session.Manager
	hub     *emit.Hub
	logger  *slog.Logger
	srv     *http.Server
}

// New creates the control server.
func New(address string, port int, manager *session.Manager, hub *emit.Hub, logger *slog.Logger) *Server {
	s := &Server{
		manager: manager,
		hub:     hub,
		logger:  logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/control/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/control/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/ws", hub.HandleWS).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", address, port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http control server listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"manager": s.manager.Status(),
		"hub":     s.hub.GetStats(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.manager.StartCapture(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.manager.StopCapture(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
