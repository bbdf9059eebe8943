// Package dashboard serves the read-only monitoring UI over the audit log.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/timeline"
	webassets "github.com/TeleQwen/TeleQwen/web"
)

// Server exposes the dashboard HTML and its JSON API. It only reads from
// the audit database; all mutation goes through the gateway.
type Server struct {
	audit *timeline.Service
	http  *http.Server
}

// New creates a dashboard server bound to host:port.
func New(audit *timeline.Service, host string, port int) *Server {
	s := &Server{audit: audit}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(assetRoot())))
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/messages", s.handleMessages)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the server in the background and shuts it down when ctx ends.
func (s *Server) Start(ctx context.Context) {
	go func() {
		slog.Info("dashboard listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("dashboard http failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.audit.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleTasks(w http.ResponseWriter, _ *http.Request) {
	tasks, err := s.audit.RecentTasks(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []timeline.TaskRecord{}
	}
	writeJSON(w, tasks)
}

func (s *Server) handleMessages(w http.ResponseWriter, _ *http.Request) {
	msgs, err := s.audit.RecentMessages(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []timeline.MessageEvent{}
	}
	writeJSON(w, msgs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func assetRoot() fs.FS {
	return webassets.Files
}
