// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/eventprocessor"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/metrics"
	"github.com/tomtom215/basketcast/internal/models"
	"github.com/tomtom215/basketcast/internal/wal"
)

// Payload keys set or read by Ingest
const (
	KeyTimestamp = "timestamp"
	KeySource    = "source"
	KeyEventType = "event_type"
	KeyEvent     = "event"
	KeyUserID    = "user_id"
)

// DefaultPartitions is the partition count when none is configured
const DefaultPartitions = 1000

// ErrEmptyPayload is returned for a nil or empty event body
var ErrEmptyPayload = errors.New("event payload is empty")

// Outbox is the durable store events pass through
type Outbox interface {
	Write(ctx context.Context, subject string, event interface{}, opts ...wal.WriteOption) (string, error)
	Confirm(ctx context.Context, entryID string) error
	UpdateAttempt(ctx context.Context, entryID string, lastError string) error
	TryClaimEntry(entryID string) bool
	ReleaseEntry(entryID string)
}

// StreamPublisher publishes a serialized event under a message id
type StreamPublisher interface {
	Publish(ctx context.Context, subject, msgID string, payload []byte) error
}

// Receipt identifies an accepted event
type Receipt struct {
	RecordID string `json:"record_id"`
	ShardID  string `json:"shard_id"`

	// Pending is true when the first publish failed and delivery was
	// handed to the outbox retry loop
	Pending bool `json:"-"`
}

// Ingestor writes events to the outbox and the stream
type Ingestor struct {
	outbox        Outbox
	publisher     StreamPublisher
	subjectPrefix string
	source        string
	partitions    uint32
	now           func() time.Time
}

// New creates an Ingestor from the stream configuration
func New(outbox Outbox, publisher StreamPublisher, cfg *config.StreamConfig) *Ingestor {
	partitions := cfg.Partitions
	if partitions == 0 {
		partitions = DefaultPartitions
	}
	source := cfg.Source
	if source == "" {
		source = "api-gateway"
	}
	return &Ingestor{
		outbox:        outbox,
		publisher:     publisher,
		subjectPrefix: cfg.SubjectPrefix,
		source:        source,
		partitions:    partitions,
		now:           time.Now,
	}
}

// Ingest enriches payload, persists it and publishes it. The caller's map
// is not modified.
func (i *Ingestor) Ingest(ctx context.Context, payload map[string]interface{}) (*Receipt, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	record := i.Enrich(payload)
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	partition := PartitionKey(recordJSON, i.partitions)

	eventType := stringField(record, KeyEventType)
	if eventType == "" {
		eventType = stringField(record, KeyEvent)
	}
	event := models.IngestEvent{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		UserID:       int64Field(record, KeyUserID),
		PartitionKey: partition,
		Timestamp:    stringField(record, KeyTimestamp),
		Source:       stringField(record, KeySource),
		Payload:      record,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	subject := eventprocessor.Topic(i.subjectPrefix, eventType)
	id, err := i.outbox.Write(ctx, subject, json.RawMessage(data), wal.WithEntryID(event.EventID))
	if err != nil {
		return nil, fmt.Errorf("write outbox: %w", err)
	}

	metrics.RecordEventIngested(event.EventType)
	receipt := &Receipt{RecordID: id, ShardID: ShardID(partition)}
	receipt.Pending = !i.publish(ctx, id, subject, data)
	return receipt, nil
}

// publish delivers a freshly written entry and confirms it. It returns
// false when the entry was left pending for the retry loop.
func (i *Ingestor) publish(ctx context.Context, id, subject string, data []byte) bool {
	if !i.outbox.TryClaimEntry(id) {
		return false
	}
	defer i.outbox.ReleaseEntry(id)

	log := logging.Ctx(ctx)
	if err := i.publisher.Publish(ctx, subject, id, data); err != nil {
		log.Warn().Err(err).Str("record_id", id).Str("subject", subject).Msg("Publish failed, event left in outbox for retry")
		if updateErr := i.outbox.UpdateAttempt(context.WithoutCancel(ctx), id, err.Error()); updateErr != nil {
			log.Error().Err(updateErr).Str("record_id", id).Msg("Failed to record publish attempt")
		}
		return false
	}

	// A failed confirm only risks a duplicate publish, which the stream
	// drops by message id
	if err := i.outbox.Confirm(context.WithoutCancel(ctx), id); err != nil {
		log.Warn().Err(err).Str("record_id", id).Msg("Failed to confirm outbox entry")
	}
	return true
}

// Enrich returns a copy of payload with timestamp and source set
func (i *Ingestor) Enrich(payload map[string]interface{}) map[string]interface{} {
	record := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		record[k] = v
	}
	record[KeyTimestamp] = i.now().UTC().Format(time.RFC3339Nano)
	record[KeySource] = i.source
	return record
}

// PartitionKey hashes a serialized record onto [0, partitions)
func PartitionKey(recordJSON []byte, partitions uint32) uint32 {
	if partitions == 0 {
		partitions = DefaultPartitions
	}
	h := fnv.New32a()
	_, _ = h.Write(recordJSON)
	return h.Sum32() % partitions
}

// ShardID formats a partition key as a shard id
func ShardID(partition uint32) string {
	return fmt.Sprintf("shardId-%012d", partition)
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// int64Field reads an integer field decoded from JSON. Numeric strings are
// accepted as they are by the HTTP layer; anything else reads as 0.
func int64Field(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0
		}
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}
