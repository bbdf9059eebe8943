package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestBridge() *bridge {
	return &bridge{
		cfg:         config{GatewayBase: "http://127.0.0.1:1"},
		client:      &http.Client{Timeout: 5 * time.Second},
		inboundSeen: map[string]time.Time{},
		inboundTTL:  10 * time.Minute,
		metrics:     bridgeMetrics{StartedAt: time.Now().UTC()},
	}
}

func TestSeenInboundEventDedupes(t *testing.T) {
	b := newTestBridge()
	now := time.Now()

	if b.seenInboundEvent("slack:msg:C1:111.0", now) {
		t.Fatal("first sighting should not be seen")
	}
	if !b.seenInboundEvent("slack:msg:C1:111.0", now) {
		t.Fatal("second sighting should be seen")
	}
	if b.seenInboundEvent("slack:msg:C1:222.0", now) {
		t.Fatal("different message should not be seen")
	}
}

func TestSeenInboundEventExpires(t *testing.T) {
	b := newTestBridge()
	start := time.Now()

	b.seenInboundEvent("slack:msg:C1:111.0", start)
	if b.seenInboundEvent("slack:msg:C1:111.0", start.Add(b.inboundTTL+time.Minute)) {
		t.Fatal("entry past TTL should be forgotten")
	}
	if b.inboundCacheSize() > 1 {
		t.Fatalf("expired entry not pruned, cache size %d", b.inboundCacheSize())
	}
}

func TestSeenInboundEventEmptyKey(t *testing.T) {
	b := newTestBridge()
	if b.seenInboundEvent("", time.Now()) {
		t.Fatal("empty key must never dedupe")
	}
	if b.seenInboundEvent("  ", time.Now()) {
		t.Fatal("blank key must never dedupe")
	}
}

func TestForwardInboundPostsToGateway(t *testing.T) {
	var got struct {
		SenderID string `json:"sender_id"`
		ChatID   string `json:"chat_id"`
		Text     string `json:"text"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode inbound body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newTestBridge()
	b.cfg.GatewayBase = srv.URL
	b.cfg.GatewayInboundToken = "secret-token"

	if err := b.forwardInbound("U123", "C456", "1724680000.000100", "hello there"); err != nil {
		t.Fatalf("forwardInbound: %v", err)
	}
	if got.SenderID != "U123" || got.ChatID != "C456" || got.Text != "hello there" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if auth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header %q", auth)
	}

	b.metricsMu.RLock()
	forwarded := b.metrics.InboundForwarded
	b.metricsMu.RUnlock()
	if forwarded != 1 {
		t.Fatalf("expected 1 forwarded, got %d", forwarded)
	}
}

func TestForwardInboundSkipsDuplicates(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newTestBridge()
	b.cfg.GatewayBase = srv.URL

	_ = b.forwardInbound("U1", "C1", "100.1", "once")
	_ = b.forwardInbound("U1", "C1", "100.1", "once")
	if calls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", calls)
	}

	b.metricsMu.RLock()
	deduped := b.metrics.InboundDeduped
	b.metricsMu.RUnlock()
	if deduped != 1 {
		t.Fatalf("expected 1 deduped, got %d", deduped)
	}
}

func TestForwardInboundIgnoresBlankMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("gateway should not be called for blank input")
	}))
	defer srv.Close()

	b := newTestBridge()
	b.cfg.GatewayBase = srv.URL

	if err := b.forwardInbound("", "C1", "1.1", "text"); err != nil {
		t.Fatalf("blank sender: %v", err)
	}
	if err := b.forwardInbound("U1", "C1", "1.2", "   "); err != nil {
		t.Fatalf("blank text: %v", err)
	}
}

func TestHandleSlackOutboundValidation(t *testing.T) {
	b := newTestBridge()

	rr := httptest.NewRecorder()
	b.handleSlackOutbound(rr, httptest.NewRequest(http.MethodGet, "/slack/outbound", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET should be rejected, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"chat_id":"","content":"hi"}`)
	b.handleSlackOutbound(rr, httptest.NewRequest(http.MethodPost, "/slack/outbound", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing chat_id should be rejected, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	body = bytes.NewBufferString(`not json`)
	b.handleSlackOutbound(rr, httptest.NewRequest(http.MethodPost, "/slack/outbound", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid json should be rejected, got %d", rr.Code)
	}
}

func TestHandleSlackOutboundPostsMessage(t *testing.T) {
	var gotChannel, gotText string
	slackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotChannel = r.Form.Get("channel")
		gotText = r.Form.Get("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C9","ts":"1.2"}`))
	}))
	defer slackSrv.Close()

	b := newTestBridge()
	b.cfg.SlackBotToken = "xoxb-test"
	b.cfg.SlackAPIBase = slackSrv.URL

	rr := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"chat_id":"C9","content":"task done"}`)
	b.handleSlackOutbound(rr, httptest.NewRequest(http.MethodPost, "/slack/outbound", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotChannel != "C9" || gotText != "task done" {
		t.Fatalf("unexpected slack post: channel=%q text=%q", gotChannel, gotText)
	}
}

func TestStripBotMention(t *testing.T) {
	if got := stripBotMention("<@U99> run the report", "U99"); got != "run the report" {
		t.Fatalf("got %q", got)
	}
	if got := stripBotMention("plain text", ""); got != "plain text" {
		t.Fatalf("got %q", got)
	}
}

func TestHandleStatusReportsMetrics(t *testing.T) {
	b := newTestBridge()
	b.noteOutbound(nil)
	b.noteInboundForward(nil)

	rr := httptest.NewRecorder()
	b.handleStatus(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		OK      bool          `json:"ok"`
		Metrics bridgeMetrics `json:"metrics"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !resp.OK || resp.Metrics.OutboundSent != 1 || resp.Metrics.InboundForwarded != 1 {
		t.Fatalf("unexpected status payload: %+v", resp)
	}
}
