// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/basketcast/internal/models"
)

const maxRecentEvents = 1000

// InsertEvent archives a consumed event. Redelivered events with a known
// event_id are ignored, so the stream consumer can ack after a retry.
func (db *DB) InsertEvent(ctx context.Context, e *models.ArchivedEvent) error {
	if e == nil || e.EventID == "" {
		return fmt.Errorf("event id is required")
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return withConflictRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR IGNORE INTO ingested_events
				(event_id, event_type, user_id, partition_key, source, payload, received_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.EventID, e.EventType, e.UserID, e.PartitionKey, e.Source, e.Payload, e.ReceivedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.EventID, err)
		}
		return nil
	})
}

// RecentEvents returns the newest archived events first. limit is clamped
// to [1, 1000].
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]models.ArchivedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxRecentEvents {
		limit = maxRecentEvents
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT event_id, event_type, user_id, partition_key, source, payload, received_at
		FROM ingested_events
		ORDER BY received_at DESC, event_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer closeWithLog(rows, "rows")

	events := make([]models.ArchivedEvent, 0, limit)
	for rows.Next() {
		var e models.ArchivedEvent
		var userID sql.NullInt64
		var partition sql.NullInt64
		var source sql.NullString
		if err := rows.Scan(&e.EventID, &e.EventType, &userID, &partition, &source, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.UserID = userID.Int64
		e.PartitionKey = uint32(partition.Int64) //nolint:gosec // column is UINTEGER
		e.Source = source.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of archived events
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	return db.countRows(ctx, "ingested_events")
}
