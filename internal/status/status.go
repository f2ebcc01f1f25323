// Package status serves the HTTP endpoints used to monitor a running server.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/metrics"
	"github.com/dcrodman/warpserver/internal/game"
)

// Source is the server whose state is reported.
type Source interface {
	Players() []game.PlayerInfo
	MaxPlayers() int
	ConnectionCount() int
}

// Report is the body of GET /status.
type Report struct {
	ServerName  string            `json:"serverName"`
	Version     string            `json:"version"`
	PlayerCount int               `json:"playerCount"`
	MaxPlayers  int               `json:"maxPlayers"`
	Connections int               `json:"connections"`
	Uptime      string            `json:"uptime"`
	Players     []game.PlayerInfo `json:"players"`
}

type Server struct {
	Port       int
	ServerName string
	Source     Source
	Metrics    *metrics.Metrics
	Logger     *logrus.Logger

	started time.Time
	router  *httprouter.Router
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.started = time.Now()
		s.router = httprouter.New()
		s.setupRoutes()
	}
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	if s.Metrics != nil {
		s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Run serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Infof("[STATUS] serving status endpoint on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	players := s.Source.Players()
	writeJSON(w, Report{
		ServerName:  s.ServerName,
		Version:     core.Version,
		PlayerCount: len(players),
		MaxPlayers:  s.Source.MaxPlayers(),
		Connections: s.Source.ConnectionCount(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Players:     players,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
