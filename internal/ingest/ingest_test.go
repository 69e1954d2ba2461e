// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/models"
	"github.com/tomtom215/basketcast/internal/wal"
)

type fakePublisher struct {
	err      error
	subjects []string
	ids      []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, subject, msgID string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.ids = append(f.ids, msgID)
	f.payloads = append(f.payloads, payload)
	return nil
}

func openOutbox(t *testing.T) *wal.BadgerWAL {
	t.Helper()
	cfg := wal.DefaultConfig(filepath.Join(t.TempDir(), "outbox"))
	cfg.SyncWrites = false
	w, err := wal.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func newTestIngestor(t *testing.T, pub StreamPublisher) (*Ingestor, *wal.BadgerWAL) {
	t.Helper()
	outbox := openOutbox(t)
	ing := New(outbox, pub, &config.StreamConfig{SubjectPrefix: "basket.events", Partitions: 1000})
	ing.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600)) }
	return ing, outbox
}

func TestIngest(t *testing.T) {
	pub := &fakePublisher{}
	ing, outbox := newTestIngestor(t, pub)

	payload := map[string]interface{}{"user_id": float64(42), "product_ids": []interface{}{float64(1)}, "event_type": "add_to_cart"}
	receipt, err := ing.Ingest(context.Background(), payload)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if receipt.RecordID == "" || receipt.Pending {
		t.Errorf("receipt = %+v", receipt)
	}
	if !strings.HasPrefix(receipt.ShardID, "shardId-") || len(receipt.ShardID) != len("shardId-")+12 {
		t.Errorf("ShardID = %q", receipt.ShardID)
	}
	if _, ok := payload["timestamp"]; ok {
		t.Error("caller payload should not be modified")
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != "basket.events.add_to_cart" {
		t.Fatalf("subjects = %v", pub.subjects)
	}
	if pub.ids[0] != receipt.RecordID {
		t.Errorf("message id = %q, want record id %q", pub.ids[0], receipt.RecordID)
	}

	var event models.IngestEvent
	if err := json.Unmarshal(pub.payloads[0], &event); err != nil {
		t.Fatal(err)
	}
	if event.EventID != receipt.RecordID || event.UserID != 42 || event.Source != "api-gateway" {
		t.Errorf("event = %+v", event)
	}
	if event.Timestamp != "2026-05-06T06:08:09Z" {
		t.Errorf("Timestamp = %q, want UTC", event.Timestamp)
	}
	if ShardID(event.PartitionKey) != receipt.ShardID {
		t.Errorf("partition %d does not match shard %s", event.PartitionKey, receipt.ShardID)
	}

	stats := outbox.Stats()
	if stats.PendingCount != 0 || stats.ConfirmedCount != 1 {
		t.Errorf("outbox stats = %+v, want the entry confirmed", stats)
	}
}

func TestIngest_StringUserID(t *testing.T) {
	pub := &fakePublisher{}
	ing, _ := newTestIngestor(t, pub)

	if _, err := ing.Ingest(context.Background(), map[string]interface{}{"user_id": "42", "event_type": "view"}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	var event models.IngestEvent
	if err := json.Unmarshal(pub.payloads[0], &event); err != nil {
		t.Fatal(err)
	}
	if event.UserID != 42 {
		t.Errorf("UserID = %d, want 42", event.UserID)
	}
}

func TestIngest_PublishFailureLeavesPending(t *testing.T) {
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	ing, outbox := newTestIngestor(t, pub)

	receipt, err := ing.Ingest(context.Background(), map[string]interface{}{"user_id": float64(1)})
	if err != nil {
		t.Fatalf("Ingest() error = %v, want nil (event is durable)", err)
	}
	if !receipt.Pending {
		t.Error("receipt.Pending = false, want true")
	}

	entry, err := outbox.Get(context.Background(), receipt.RecordID)
	if err != nil {
		t.Fatalf("outbox entry missing: %v", err)
	}
	if entry.Attempts != 1 || entry.LastError != "circuit breaker is open" {
		t.Errorf("entry = %+v, want one recorded attempt", entry)
	}
	if entry.Subject != "basket.events.unknown" {
		t.Errorf("Subject = %q, want unknown event type", entry.Subject)
	}
}

func TestIngest_EmptyPayload(t *testing.T) {
	ing, _ := newTestIngestor(t, &fakePublisher{})
	if _, err := ing.Ingest(context.Background(), nil); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("Ingest(nil) error = %v, want ErrEmptyPayload", err)
	}
}

func TestIngest_OutboxClosed(t *testing.T) {
	ing, outbox := newTestIngestor(t, &fakePublisher{})
	_ = outbox.Close()
	if _, err := ing.Ingest(context.Background(), map[string]interface{}{"user_id": float64(1)}); !errors.Is(err, wal.ErrWALClosed) {
		t.Errorf("Ingest() error = %v, want ErrWALClosed", err)
	}
}

func TestPartitionKey(t *testing.T) {
	record := []byte(`{"source":"api-gateway","user_id":1}`)
	a := PartitionKey(record, 1000)
	if a >= 1000 {
		t.Errorf("PartitionKey() = %d, out of range", a)
	}
	if b := PartitionKey(record, 1000); a != b {
		t.Error("PartitionKey() should be deterministic")
	}
	if got := PartitionKey(record, 1); got != 0 {
		t.Errorf("PartitionKey(_, 1) = %d, want 0", got)
	}
	if got := PartitionKey(record, 0); got >= DefaultPartitions {
		t.Errorf("PartitionKey(_, 0) = %d, want default range", got)
	}
	// FNV-32a of the empty input is the offset basis
	if got := PartitionKey(nil, 1<<31); got != 2166136261%(1<<31) {
		t.Errorf("PartitionKey(nil) = %d", got)
	}
}

func TestShardID(t *testing.T) {
	tests := []struct {
		partition uint32
		want      string
	}{
		{0, "shardId-000000000000"},
		{417, "shardId-000000000417"},
		{999, "shardId-000000000999"},
	}
	for _, tt := range tests {
		if got := ShardID(tt.partition); got != tt.want {
			t.Errorf("ShardID(%d) = %q, want %q", tt.partition, got, tt.want)
		}
	}
}

func TestInt64Field(t *testing.T) {
	m := map[string]interface{}{
		"f": float64(7), "i": 8, "n": json.Number("9"), "s": "10", "padded": " 11 ",
		"word": "ten", "frac": 2.5, "huge": float64(1 << 63), "bool": true,
	}
	tests := []struct {
		key  string
		want int64
	}{
		{"f", 7}, {"i", 8}, {"n", 9}, {"s", 10}, {"padded", 11},
		{"word", 0}, {"frac", 0}, {"huge", 0}, {"bool", 0}, {"missing", 0},
	}
	for _, tt := range tests {
		if got := int64Field(m, tt.key); got != tt.want {
			t.Errorf("int64Field(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestIngest_EventKeyFallback(t *testing.T) {
	pub := &fakePublisher{}
	ing, _ := newTestIngestor(t, pub)

	if _, err := ing.Ingest(context.Background(), map[string]interface{}{"user_id": float64(7), "event": "remove_from_cart"}); err != nil {
		t.Fatal(err)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "basket.events.remove_from_cart" {
		t.Errorf("subjects = %v", pub.subjects)
	}
}
