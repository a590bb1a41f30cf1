package proactive

import (
	"context"
	"testing"

	"github.com/chimeworks/gochime/internal/bus"
)

type fakeRouter struct {
	outbound []bus.OutboundMessage
}

func (f *fakeRouter) PublishInbound(msg bus.InboundMessage) {}
func (f *fakeRouter) ConsumeInbound(ctx context.Context) (bus.InboundMessage, bool) {
	return bus.InboundMessage{}, false
}
func (f *fakeRouter) PublishOutbound(msg bus.OutboundMessage) {
	f.outbound = append(f.outbound, msg)
}
func (f *fakeRouter) SubscribeOutbound(ctx context.Context) (bus.OutboundMessage, bool) {
	return bus.OutboundMessage{}, false
}

func TestBusTransportPush(t *testing.T) {
	router := &fakeRouter{}
	tr := NewBusTransport(router)

	if err := tr.Push("chat:telegram:group:-10042", "hello there"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(router.outbound) != 1 {
		t.Fatalf("published %d messages, want 1", len(router.outbound))
	}
	msg := router.outbound[0]
	if msg.Channel != "telegram" || msg.ChatID != "-10042" || msg.Content != "hello there" {
		t.Errorf("outbound = %+v", msg)
	}
	if msg.Metadata["session_key"] != "chat:telegram:group:-10042" {
		t.Errorf("session_key metadata = %q", msg.Metadata["session_key"])
	}
}

func TestBusTransportPushMalformedKey(t *testing.T) {
	tr := NewBusTransport(&fakeRouter{})
	if err := tr.Push("not-a-key", "text"); err == nil {
		t.Error("malformed key accepted")
	}
}
