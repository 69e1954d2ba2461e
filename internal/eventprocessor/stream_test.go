// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/models"
)

func startEmbeddedNATS(t *testing.T) *EmbeddedServer {
	t.Helper()
	cfg := DefaultServerConfig(t.TempDir())
	cfg.Port = -1
	srv, err := NewEmbeddedServer(&cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

type recordingArchive struct {
	mu     sync.Mutex
	events []*models.ArchivedEvent
}

func (r *recordingArchive) InsertEvent(_ context.Context, e *models.ArchivedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingArchive) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestEmbeddedStream_PublishAndArchive(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}

	srv := startEmbeddedNATS(t)
	if !srv.IsRunning() || !srv.JetStreamEnabled() {
		t.Fatal("embedded server should run with JetStream")
	}

	settings, err := SettingsFromConfig(&config.StreamConfig{
		Name:          "BASKET_EVENTS_TEST",
		SubjectPrefix: "basket.test",
	})
	if err != nil {
		t.Fatal(err)
	}
	settings.SetURL(srv.ClientURL())
	settings.Subscriber.SubscribersCount = 1

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	mgr, err := NewStreamManager(srv.ClientURL(), &settings.Stream)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Close()
	if _, err := mgr.EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}
	// Second call updates in place
	if _, err := mgr.EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream() update error = %v", err)
	}
	if !mgr.IsConnected() {
		t.Error("IsConnected() = false")
	}

	pub, err := NewPublisher(settings.Publisher, logging.NewWatermillLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Close()

	event := models.IngestEvent{EventID: "evt-1", EventType: "add_to_cart", UserID: 4, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
	payload, _ := json.Marshal(event)
	subject := Topic(settings.SubjectPrefix, event.EventType)

	// Publishing the same id twice is deduplicated by the stream
	for i := 0; i < 2; i++ {
		if err := pub.Publish(ctx, subject, event.EventID, payload); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	info, err := mgr.GetStreamInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.State.Msgs != 1 {
		t.Errorf("stream holds %d messages, want 1 after dedupe", info.State.Msgs)
	}

	sub, err := NewSubscriber(&settings.Subscriber, logging.NewWatermillLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	archive := &recordingArchive{}
	handler := NewArchiveHandler(archive, nil)
	svc := NewConsumerService("test-consumer", sub, WildcardTopic(settings.SubjectPrefix), handler.Handle)
	if svc.String() != "test-consumer" {
		t.Errorf("String() = %q", svc.String())
	}

	svcCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Serve(svcCtx) }()

	for archive.count() == 0 && ctx.Err() == nil {
		time.Sleep(20 * time.Millisecond)
	}
	stop()
	<-done

	if archive.count() != 1 {
		t.Fatalf("archived %d events, want 1", archive.count())
	}
	if archive.events[0].EventID != "evt-1" || archive.events[0].UserID != 4 {
		t.Errorf("archived = %+v", archive.events[0])
	}
}

func TestConsumerService_Dispatch(t *testing.T) {
	calls := 0
	h := &ConsumerService{name: "test", fn: func(ctx context.Context, msg *message.Message) error {
		calls++
		if string(msg.Payload) == "bad" {
			return context.DeadlineExceeded
		}
		return nil
	}}

	good := message.NewMessage("1", []byte("good"))
	if err := h.dispatch(context.Background(), good); err != nil {
		t.Errorf("dispatch(good) error = %v", err)
	}
	select {
	case <-good.Acked():
	default:
		t.Error("good message should be acked")
	}

	bad := message.NewMessage("2", []byte("bad"))
	if err := h.dispatch(context.Background(), bad); err == nil {
		t.Error("dispatch(bad) should return the handler error")
	}
	select {
	case <-bad.Nacked():
	default:
		t.Error("bad message should be nacked")
	}
	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}
