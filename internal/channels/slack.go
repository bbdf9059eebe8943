package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/config"
)

// SlackChannel relays messages through the external channelbridge process,
// which owns the Socket Mode connection. Inbound arrives via the gateway's
// HTTP endpoint; outbound is posted to the bridge.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	client *http.Client
}

// NewSlackChannel creates a Slack channel adapter.
func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		client:      &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start subscribes to outbound messages for this channel.
func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Error("slack send failed", "chat_id", msg.ChatID, "error", err)
		}
	})
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

// Send posts the message to the bridge's outbound endpoint.
func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if strings.TrimSpace(c.config.OutboundURL) == "" {
		return nil
	}
	body, _ := json.Marshal(map[string]any{
		"chat_id": msg.ChatID,
		"content": msg.Content,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.OutboundURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack outbound bridge status: %d", resp.StatusCode)
	}
	return nil
}

// HandleInbound publishes a message forwarded by the bridge onto the bus.
func (c *SlackChannel) HandleInbound(senderID, chatID, text string) {
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: strings.TrimSpace(senderID),
		ChatID:   strings.TrimSpace(chatID),
		Content:  text,
	})
}
