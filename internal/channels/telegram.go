package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/config"
)

const (
	telegramAPIBase = "https://api.telegram.org"
	// Long-poll wait passed to getUpdates.
	telegramPollSeconds = 30
)

// TelegramChannel talks to the Telegram Bot API over HTTP long polling.
// Inbound updates go to the bus; outbound replies are chunked to the
// platform's message size limit.
type TelegramChannel struct {
	BaseChannel
	config   config.TelegramConfig
	apiBase  string
	maxLen   int
	client   *http.Client
	cancel   context.CancelFunc
	lastSeen int64
}

// NewTelegramChannel creates a Telegram channel adapter. maxLen caps one
// outbound message; longer replies are split.
func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus, maxLen int) *TelegramChannel {
	if maxLen <= 0 {
		maxLen = 4096
	}
	return &TelegramChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		apiBase:     telegramAPIBase,
		maxLen:      maxLen,
		client:      &http.Client{Timeout: (telegramPollSeconds + 15) * time.Second},
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Start subscribes to outbound messages and launches the long-poll loop.
func (c *TelegramChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if c.config.Token == "" {
		return fmt.Errorf("telegram enabled but no bot token configured")
	}

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		if err := c.Send(ctx, msg); err != nil {
			slog.Error("telegram send failed", "chat_id", msg.ChatID, "error", err)
		}
	})

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.pollLoop(pollCtx)
	return nil
}

// Stop cancels the long-poll loop.
func (c *TelegramChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers an outbound message, splitting it into chunks that fit the
// platform limit. A failed chunk aborts the rest.
func (c *TelegramChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	for _, chunk := range splitMessage(msg.Content, c.maxLen) {
		if err := c.sendMessage(ctx, msg.ChatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

func (c *TelegramChannel) pollLoop(ctx context.Context) {
	slog.Info("telegram long-poll started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := c.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("telegram getUpdates failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= c.lastSeen {
				c.lastSeen = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
				continue
			}
			c.Bus.PublishInbound(&bus.InboundMessage{
				Channel:  c.Name(),
				SenderID: strconv.FormatInt(u.Message.From.ID, 10),
				ChatID:   strconv.FormatInt(u.Message.Chat.ID, 10),
				Content:  u.Message.Text,
			})
		}
	}
}

func (c *TelegramChannel) getUpdates(ctx context.Context) ([]telegramUpdate, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(telegramPollSeconds))
	if c.lastSeen > 0 {
		q.Set("offset", strconv.FormatInt(c.lastSeen, 10))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool             `json:"ok"`
		Description string           `json:"description"`
		Result      []telegramUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode getUpdates: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getUpdates: %s", out.Description)
	}
	return out.Result, nil
}

func (c *TelegramChannel) sendMessage(ctx context.Context, chatID, text string) error {
	body, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
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
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram sendMessage status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func (c *TelegramChannel) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.config.Token, method)
}

// splitMessage cuts text into chunks of at most maxLen bytes, preferring
// newline boundaries. Hard cuts never land inside a multi-byte rune.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > maxLen {
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if text[i] == '\n' {
				cut = i
				break
			}
		}
		if cut == maxLen {
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
		}
		chunks = append(chunks, text[:cut])
		for cut < len(text) && text[cut] == '\n' {
			cut++
		}
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
