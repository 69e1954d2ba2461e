// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/metrics"
	"github.com/tomtom215/basketcast/internal/models"
)

// EventArchive stores consumed events
type EventArchive interface {
	InsertEvent(ctx context.Context, e *models.ArchivedEvent) error
}

// EventBroadcaster forwards archived events to live dashboards
type EventBroadcaster interface {
	BroadcastEvent(e *models.ArchivedEvent)
}

// ArchiveHandler writes consumed events to the archive and broadcasts them.
// Malformed messages are acked and logged so they are not redelivered forever.
type ArchiveHandler struct {
	archive     EventArchive
	broadcaster EventBroadcaster
	now         func() time.Time
}

// NewArchiveHandler creates a handler. broadcaster may be nil.
func NewArchiveHandler(archive EventArchive, broadcaster EventBroadcaster) *ArchiveHandler {
	return &ArchiveHandler{archive: archive, broadcaster: broadcaster, now: time.Now}
}

// Handle implements HandlerFunc
func (h *ArchiveHandler) Handle(ctx context.Context, msg *message.Message) error {
	start := time.Now()
	defer func() { metrics.RecordNATSConsume(time.Since(start)) }()

	archived, err := DecodeEvent(msg.Payload, h.now())
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed event")
		return nil
	}

	if h.archive != nil {
		if err := h.archive.InsertEvent(ctx, archived); err != nil {
			return fmt.Errorf("archive event %s: %w", archived.EventID, err)
		}
	}
	if h.broadcaster != nil {
		h.broadcaster.BroadcastEvent(archived)
	}
	return nil
}

// DecodeEvent turns a stream payload into an archive row. receivedAt is
// used when the envelope timestamp is missing or unparseable.
func DecodeEvent(payload []byte, receivedAt time.Time) (*models.ArchivedEvent, error) {
	var event models.IngestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.EventID == "" {
		return nil, fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	}

	body, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if ts, err := time.Parse(time.RFC3339Nano, event.Timestamp); err == nil {
		receivedAt = ts
	}

	return &models.ArchivedEvent{
		EventID:      event.EventID,
		EventType:    event.EventType,
		UserID:       event.UserID,
		PartitionKey: event.PartitionKey,
		Source:       event.Source,
		Payload:      string(body),
		ReceivedAt:   receivedAt.UTC(),
	}, nil
}
