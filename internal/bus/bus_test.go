package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	b := New()
	b.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no inbound message")
	}
	if msg.Channel != "telegram" || msg.ChatID != "42" || msg.Content != "hi" {
		t.Errorf("got %+v", msg)
	}
}

func TestOutboundRoundTrip(t *testing.T) {
	b := New()
	b.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "9", Content: "pong"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("no outbound message")
	}
	if msg.Channel != "discord" || msg.Content != "pong" {
		t.Errorf("got %+v", msg)
	}
}

func TestConsumeStopsOnContextCancel(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := b.ConsumeInbound(ctx); ok {
		t.Error("consume returned ok on cancelled context")
	}
	if _, ok := b.SubscribeOutbound(ctx); ok {
		t.Error("subscribe returned ok on cancelled context")
	}
}

func TestPublishNeverBlocksWhenFull(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize+10; i++ {
			b.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishInbound blocked on a full queue")
	}
}

func TestDedupeCache(t *testing.T) {
	c := NewDedupeCache(time.Minute, 100)

	if c.IsDuplicate("m1") {
		t.Error("first sighting reported as duplicate")
	}
	if !c.IsDuplicate("m1") {
		t.Error("second sighting not reported as duplicate")
	}
	if c.IsDuplicate("m2") {
		t.Error("unrelated key reported as duplicate")
	}
}

func TestDedupeCacheTTLExpiry(t *testing.T) {
	c := NewDedupeCache(10*time.Millisecond, 100)

	c.IsDuplicate("m1")
	time.Sleep(30 * time.Millisecond)
	if c.IsDuplicate("m1") {
		t.Error("expired entry still reported as duplicate")
	}
}

func TestDedupeCacheBounded(t *testing.T) {
	c := NewDedupeCache(time.Hour, 10)
	for i := 0; i < 50; i++ {
		c.IsDuplicate(string(rune('a' + i)))
	}
	if len(c.entries) > 10 {
		t.Errorf("cache holds %d entries, cap is 10", len(c.entries))
	}
}
