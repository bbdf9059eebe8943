package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundtrip(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("ConsumeInbound: %v", err)
	}
	if msg.Content != "hi" || msg.Channel != "telegram" {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped")
	}
}

func TestConsumeInboundCancelled(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestOutboundFanout(t *testing.T) {
	b := NewMessageBus()
	got := make(chan string, 1)
	b.Subscribe("telegram", func(m *OutboundMessage) { got <- m.Content })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "telegram", ChatID: "42", Content: "pong"})
	select {
	case content := <-got:
		if content != "pong" {
			t.Fatalf("content = %q", content)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound message not delivered")
	}
}

func TestOutboundIgnoresOtherChannels(t *testing.T) {
	b := NewMessageBus()
	got := make(chan string, 1)
	b.Subscribe("slack", func(m *OutboundMessage) { got <- m.Content })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "telegram", Content: "nope"})
	select {
	case content := <-got:
		t.Fatalf("unexpected delivery: %q", content)
	case <-time.After(100 * time.Millisecond):
	}
}
