package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/config"
)

func TestSplitMessageShort(t *testing.T) {
	chunks := splitMessage("hello", 4096)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 50)
	chunks := splitMessage(text, 60)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 50) {
		t.Fatalf("first chunk = %q", chunks[0])
	}
	if chunks[1] != strings.Repeat("b", 50) {
		t.Fatalf("second chunk = %q", chunks[1])
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	text := strings.Repeat("x", 100)
	chunks := splitMessage(text, 40)
	total := 0
	for _, c := range chunks {
		if len(c) > 40 {
			t.Fatalf("chunk over limit: %d", len(c))
		}
		total += len(c)
	}
	if total != 100 {
		t.Fatalf("lost bytes: %d", total)
	}
}

func TestSplitMessageHardCutKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 30) // 2 bytes per rune, no newlines
	chunks := splitMessage(text, 15)
	var rebuilt strings.Builder
	for _, c := range chunks {
		if len(c) > 15 {
			t.Fatalf("chunk over limit: %d bytes", len(c))
		}
		if !utf8.ValidString(c) {
			t.Fatalf("chunk split mid-rune: %q", c)
		}
		rebuilt.WriteString(c)
	}
	if rebuilt.String() != text {
		t.Fatalf("lost content: got %d bytes, want %d", rebuilt.Len(), len(text))
	}
}

func TestTelegramSendChunksSequentially(t *testing.T) {
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		sent = append(sent, req.Text)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewTelegramChannel(config.TelegramConfig{Enabled: true, Token: "tok"}, bus.NewMessageBus(), 10)
	c.apiBase = srv.URL

	err := c.Send(context.Background(), &bus.OutboundMessage{ChatID: "1", Content: "aaaaaaaaaabbbbbbbbbb"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
}

func TestTelegramPollPublishesInbound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "getUpdates") {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"from":{"id":99,"username":"alice"},"chat":{"id":42},"text":"hello"}}]}`))
	}))
	defer srv.Close()

	b := bus.NewMessageBus()
	c := NewTelegramChannel(config.TelegramConfig{Enabled: true, Token: "tok"}, b, 4096)
	c.apiBase = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.pollLoop(ctx)

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	msg, err := b.ConsumeInbound(recvCtx)
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if msg.SenderID != "99" || msg.ChatID != "42" || msg.Content != "hello" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestSlackHandleInbound(t *testing.T) {
	b := bus.NewMessageBus()
	c := NewSlackChannel(config.SlackConfig{Enabled: true}, b)
	c.HandleInbound(" U123 ", " C456 ", "hey")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if msg.SenderID != "U123" || msg.ChatID != "C456" || msg.Channel != "slack" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestSlackSendPostsToBridge(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewSlackChannel(config.SlackConfig{Enabled: true, OutboundURL: srv.URL}, bus.NewMessageBus())
	err := c.Send(context.Background(), &bus.OutboundMessage{ChatID: "C1", Content: "pong"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "C1" || got["content"] != "pong" {
		t.Fatalf("payload = %v", got)
	}
}
