package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/channels"
)

// Server is the gateway's HTTP surface: health and the bridge inbound
// endpoint. It binds to loopback by default.
type Server struct {
	gw    *Gateway
	slack *channels.SlackChannel
	http  *http.Server
}

// NewServer creates the gateway HTTP server. slack may be nil when the
// Slack channel is disabled.
func NewServer(gw *Gateway, slack *channels.SlackChannel) *Server {
	s := &Server{gw: gw, slack: slack}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/channels/slack/inbound", s.handleSlackInbound)

	addr := fmt.Sprintf("%s:%d", gw.cfg.Gateway.Host, gw.cfg.Gateway.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the server in the background and shuts it down when ctx ends.
func (s *Server) Start(ctx context.Context) {
	go func() {
		slog.Info("gateway http listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway http failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func (s *Server) handleSlackInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.slack == nil {
		http.Error(w, "slack channel disabled", http.StatusNotFound)
		return
	}
	if !verifyBearer(r, s.gw.cfg.Channels.Slack.InboundToken) {
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}
	var req struct {
		SenderID string `json:"sender_id"`
		ChatID   string `json:"chat_id"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "chat_id and text required", http.StatusBadRequest)
		return
	}
	s.slack.HandleInbound(req.SenderID, req.ChatID, req.Text)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func verifyBearer(r *http.Request, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}
	got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	return got == expected
}
