// channelbridge connects Slack Socket Mode to the teleqwen gateway. It
// runs as its own process so Slack credentials and the websocket stay out
// of the agent core.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

type config struct {
	ListenAddr string

	GatewayBase         string
	GatewayInboundToken string

	SlackBotToken  string
	SlackAppToken  string
	SlackBotUserID string
	SlackAPIBase   string
}

type bridge struct {
	cfg    config
	client *http.Client

	inboundMu   sync.Mutex
	inboundSeen map[string]time.Time
	inboundTTL  time.Duration

	metricsMu sync.RWMutex
	metrics   bridgeMetrics
}

type bridgeMetrics struct {
	StartedAt time.Time `json:"started_at"`

	InboundForwarded     int    `json:"inbound_forwarded"`
	OutboundSent         int    `json:"outbound_sent"`
	InboundForwardErrors int    `json:"inbound_forward_errors"`
	OutboundErrors       int    `json:"outbound_errors"`
	InboundDeduped       int    `json:"inbound_deduped"`
	LastError            string `json:"last_error,omitempty"`
	LastErrorAt          string `json:"last_error_at,omitempty"`
}

func main() {
	cfg := loadConfig()
	b := &bridge{
		cfg:         cfg,
		client:      &http.Client{Timeout: 20 * time.Second},
		inboundSeen: map[string]time.Time{},
		inboundTTL:  10 * time.Minute,
		metrics:     bridgeMetrics{StartedAt: time.Now().UTC()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	mux.HandleFunc("/status", b.handleStatus)
	mux.HandleFunc("/slack/outbound", b.handleSlackOutbound)
	b.startSlackSocketMode()

	log.Printf("channelbridge listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("channelbridge failed: %v", err)
	}
}

func loadConfig() config {
	return config{
		ListenAddr:          getEnvDefault("CHANNEL_BRIDGE_ADDR", ":18888"),
		GatewayBase:         getEnvDefault("TELEQWEN_BASE_URL", "http://127.0.0.1:18890"),
		GatewayInboundToken: strings.TrimSpace(os.Getenv("TELEQWEN_SLACK_INBOUND_TOKEN")),
		SlackBotToken:       strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")),
		SlackAppToken:       strings.TrimSpace(os.Getenv("SLACK_APP_TOKEN")),
		SlackBotUserID:      strings.TrimSpace(os.Getenv("SLACK_BOT_USER_ID")),
		SlackAPIBase:        getEnvDefault("SLACK_API_BASE", "https://slack.com/api"),
	}
}

func getEnvDefault(k, d string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	return v
}

func (b *bridge) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	b.metricsMu.RLock()
	metrics := b.metrics
	b.metricsMu.RUnlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":                   true,
		"metrics":              metrics,
		"inbound_dedupe_cache": b.inboundCacheSize(),
	})
}

func (b *bridge) inboundCacheSize() int {
	b.inboundMu.Lock()
	defer b.inboundMu.Unlock()
	b.pruneInboundSeenLocked(time.Now())
	return len(b.inboundSeen)
}

func (b *bridge) noteInboundForward(err error) {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	if err == nil {
		b.metrics.InboundForwarded++
		return
	}
	b.metrics.InboundForwardErrors++
	b.metrics.LastError = err.Error()
	b.metrics.LastErrorAt = time.Now().UTC().Format(time.RFC3339)
}

func (b *bridge) noteOutbound(err error) {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	if err == nil {
		b.metrics.OutboundSent++
		return
	}
	b.metrics.OutboundErrors++
	b.metrics.LastError = err.Error()
	b.metrics.LastErrorAt = time.Now().UTC().Format(time.RFC3339)
}

// seenInboundEvent records key and reports whether it was already seen
// within the TTL. Used to drop Slack redeliveries.
func (b *bridge) seenInboundEvent(key string, now time.Time) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	b.inboundMu.Lock()
	defer b.inboundMu.Unlock()
	b.pruneInboundSeenLocked(now)
	if _, ok := b.inboundSeen[key]; ok {
		return true
	}
	b.inboundSeen[key] = now
	return false
}

func (b *bridge) pruneInboundSeenLocked(now time.Time) {
	cutoff := now.Add(-b.inboundTTL)
	for k, ts := range b.inboundSeen {
		if ts.Before(cutoff) {
			delete(b.inboundSeen, k)
		}
	}
}

func (b *bridge) startSlackSocketMode() {
	if b.cfg.SlackAppToken == "" {
		log.Printf("slack socket mode disabled: missing SLACK_APP_TOKEN")
		return
	}
	api, err := b.slackClient(true)
	if err != nil {
		log.Printf("slack socket mode disabled: %v", err)
		return
	}
	client := socketmode.New(api)
	go b.runSlackSocketMode(client)
}

func (b *bridge) runSlackSocketMode(client *socketmode.Client) {
	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					client.Ack(*evt.Request)
				}
				ev, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok || ev.Type != slackevents.CallbackEvent {
					continue
				}
				switch in := ev.InnerEvent.Data.(type) {
				case *slackevents.MessageEvent:
					if in == nil || in.BotID != "" || in.Text == "" {
						continue
					}
					_ = b.forwardInbound(in.User, in.Channel, in.TimeStamp, in.Text)
				case *slackevents.AppMentionEvent:
					if in == nil {
						continue
					}
					_ = b.forwardInbound(in.User, in.Channel, in.TimeStamp, stripBotMention(in.Text, b.cfg.SlackBotUserID))
				}
			}
		}
	}()
	if err := client.Run(); err != nil {
		log.Printf("slack socket mode stopped: %v", err)
	}
}

func stripBotMention(text, botUserID string) string {
	if botUserID != "" {
		text = strings.ReplaceAll(text, "<@"+botUserID+">", "")
	}
	return strings.TrimSpace(text)
}

// forwardInbound posts a Slack message to the gateway's inbound endpoint.
func (b *bridge) forwardInbound(senderID, channelID, messageID, text string) error {
	senderID = strings.TrimSpace(senderID)
	channelID = strings.TrimSpace(channelID)
	if senderID == "" || channelID == "" || strings.TrimSpace(text) == "" {
		return nil
	}
	if messageID != "" && b.seenInboundEvent("slack:msg:"+channelID+":"+messageID, time.Now()) {
		b.metricsMu.Lock()
		b.metrics.InboundDeduped++
		b.metricsMu.Unlock()
		return nil
	}

	body, _ := json.Marshal(map[string]any{
		"sender_id": senderID,
		"chat_id":   channelID,
		"text":      text,
	})
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(b.cfg.GatewayBase, "/")+"/api/v1/channels/slack/inbound", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.GatewayInboundToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.GatewayInboundToken)
	}
	resp, err := b.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 300 {
			err = fmt.Errorf("gateway inbound status: %d", resp.StatusCode)
		}
	}
	b.noteInboundForward(err)
	if err != nil {
		log.Printf("slack inbound forward failed: %v", err)
	}
	return err
}

func (b *bridge) handleSlackOutbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.Content) == "" {
		http.Error(w, "chat_id and content required", http.StatusBadRequest)
		return
	}
	err := b.slackPostMessage(req.ChatID, req.Content)
	b.noteOutbound(err)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

func (b *bridge) slackPostMessage(channelID, text string) error {
	api, err := b.slackClient(false)
	if err != nil {
		return err
	}
	return withRetry(3, 200*time.Millisecond, func() (bool, error) {
		_, _, err := api.PostMessage(channelID, slack.MsgOptionText(text, false))
		return slackRetryDecision(err)
	})
}

func (b *bridge) slackClient(withAppToken bool) (*slack.Client, error) {
	if b.cfg.SlackBotToken == "" {
		return nil, errors.New("missing SLACK_BOT_TOKEN")
	}
	base := strings.TrimRight(b.cfg.SlackAPIBase, "/") + "/"
	opts := []slack.Option{
		slack.OptionHTTPClient(b.client),
		slack.OptionAPIURL(base),
	}
	if withAppToken {
		if b.cfg.SlackAppToken == "" {
			return nil, errors.New("missing SLACK_APP_TOKEN")
		}
		opts = append(opts, slack.OptionAppLevelToken(b.cfg.SlackAppToken))
	}
	return slack.New(b.cfg.SlackBotToken, opts...), nil
}

func slackRetryDecision(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) && rle != nil {
		if rle.RetryAfter > 0 {
			time.Sleep(rle.RetryAfter)
		}
		return true, err
	}
	return false, err
}

// withRetry runs fn up to attempts times while it asks for a retry.
func withRetry(attempts int, wait time.Duration, fn func() (retry bool, err error)) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		retry, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		time.Sleep(wait)
	}
	return lastErr
}
