// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/basketcast/internal/wal"
)

type fakeWMPublisher struct {
	mu       sync.Mutex
	err      error
	subjects []string
	messages []*message.Message
	closed   bool
}

func (f *fakeWMPublisher) Publish(topic string, msgs ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, m := range msgs {
		f.subjects = append(f.subjects, topic)
		f.messages = append(f.messages, m)
	}
	return nil
}

func (f *fakeWMPublisher) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_PublishSetsMsgID(t *testing.T) {
	fake := &fakeWMPublisher{}
	p := newPublisherWith(fake)

	if err := p.Publish(context.Background(), "basket.events.add_to_cart", "id-1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(fake.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.UUID != "id-1" || msg.Metadata.Get(natsgo.MsgIdHdr) != "id-1" {
		t.Errorf("UUID = %q, Nats-Msg-Id = %q; want id-1", msg.UUID, msg.Metadata.Get(natsgo.MsgIdHdr))
	}
	if fake.subjects[0] != "basket.events.add_to_cart" {
		t.Errorf("subject = %q", fake.subjects[0])
	}
}

func TestPublisher_PublishEntry(t *testing.T) {
	fake := &fakeWMPublisher{}
	p := newPublisherWith(fake)

	entry := &wal.Entry{ID: "entry-7", Subject: "basket.events.unknown", Payload: []byte(`{}`)}
	if err := p.PublishEntry(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	if fake.messages[0].UUID != "entry-7" || fake.subjects[0] != "basket.events.unknown" {
		t.Errorf("published %q to %q", fake.messages[0].UUID, fake.subjects[0])
	}
}

func TestPublisher_BreakerOpens(t *testing.T) {
	fake := &fakeWMPublisher{err: errors.New("nats: no responders available")}
	p := newPublisherWith(fake)
	cfg := DefaultCircuitBreakerConfig("test-publisher")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Minute
	p.SetCircuitBreaker(NewCircuitBreaker(cfg))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := p.Publish(ctx, "s", "id", nil); err == nil {
			t.Fatal("Publish() should fail")
		}
	}
	if got := p.BreakerState(); got != "open" {
		t.Fatalf("BreakerState() = %q, want open", got)
	}

	fake.err = nil
	if err := p.Publish(ctx, "s", "id", nil); err == nil {
		t.Error("Publish() with open breaker should fail fast")
	}
	if len(fake.messages) != 0 {
		t.Error("open breaker should not reach the publisher")
	}
}

func TestPublisher_Closed(t *testing.T) {
	fake := &fakeWMPublisher{}
	p := newPublisherWith(fake)

	if p.BreakerState() != "disabled" {
		t.Errorf("BreakerState() = %q, want disabled", p.BreakerState())
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if !fake.closed || !p.IsClosed() {
		t.Error("Close() should close the underlying publisher")
	}
	if err := p.Publish(context.Background(), "s", "id", nil); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish() after close error = %v, want ErrPublisherClosed", err)
	}
}
