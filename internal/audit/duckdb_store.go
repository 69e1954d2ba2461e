// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/basketcast/internal/logging"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		type VARCHAR NOT NULL,
		severity VARCHAR NOT NULL,
		outcome VARCHAR NOT NULL,
		actor_id VARCHAR NOT NULL,
		actor_role VARCHAR,
		source_ip VARCHAR NOT NULL,
		source_user_agent VARCHAR,
		action VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		metadata VARCHAR,
		request_id VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_events(actor_id)`,
}

// DuckDBStore persists events in the audit_events table
type DuckDBStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewDuckDBStore wraps an open DuckDB connection. Call CreateTable first.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates audit_events and its indexes if missing
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create audit schema: %w", err)
		}
	}
	logging.Debug().Msg("Audit events table created/verified")
	return nil
}

// Save inserts event. Writes are serialized to avoid DuckDB transaction
// conflicts between concurrent appenders.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, timestamp, type, severity, outcome, actor_id, actor_role,
			 source_ip, source_user_agent, action, description, metadata, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC(), string(event.Type), string(event.Severity), string(event.Outcome),
		event.Actor.ID, nullString(event.Actor.Role),
		event.Source.IPAddress, nullString(event.Source.UserAgent),
		event.Action, event.Description, nullString(string(event.Metadata)), nullString(event.RequestID))
	if err != nil {
		return fmt.Errorf("save audit event %s: %w", event.ID, err)
	}
	return nil
}

// Query returns matching events newest first
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var conditions []string
	var args []interface{}

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ",")+")")
	}
	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT id, timestamp, type, severity, outcome, actor_id, actor_role,
		source_ip, source_user_agent, action, description, metadata, request_id
		FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id LIMIT ?"
	args = append(args, filter.normalizedLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		var eventType, severity, outcome string
		var role, userAgent, metadata, requestID sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &severity, &outcome, &e.Actor.ID, &role,
			&e.Source.IPAddress, &userAgent, &e.Action, &e.Description, &metadata, &requestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Type = EventType(eventType)
		e.Severity = Severity(severity)
		e.Outcome = Outcome(outcome)
		e.Actor.Role = role.String
		e.Source.UserAgent = userAgent.String
		if metadata.Valid && metadata.String != "" {
			e.Metadata = []byte(metadata.String)
		}
		e.RequestID = requestID.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Delete removes events older than olderThan
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
