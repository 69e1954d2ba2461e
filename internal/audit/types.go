// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// EventType identifies what happened
type EventType string

const (
	EventTypeAuthSuccess       EventType = "auth.success"
	EventTypeAuthFailure       EventType = "auth.failure"
	EventTypeAuthLockout       EventType = "auth.lockout"
	EventTypePipelineTriggered EventType = "pipeline.triggered"
)

// Severity orders events for filtering
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Outcome is whether the audited action succeeded
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Actor       Actor           `json:"actor"`
	Source      Source          `json:"source"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Actor is who performed the action. ID is the submitted username, which
// for failed logins may not be a real account.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

// Source is where the request came from
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// SourceFromRequest reads the client address and user agent. RemoteAddr has
// already been rewritten by the RealIP middleware.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{IPAddress: ip, UserAgent: r.UserAgent()}
}

// Store persists audit events
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// MaxQueryLimit caps QueryFilter.Limit
const MaxQueryLimit = 1000

// QueryFilter selects events. Empty fields match everything. Results are
// newest first.
type QueryFilter struct {
	Types   []EventType `json:"types,omitempty"`
	ActorID string      `json:"actor_id,omitempty"`
	Outcome Outcome     `json:"outcome,omitempty"`
	Since   *time.Time  `json:"since,omitempty"`
	Limit   int         `json:"limit,omitempty"`
}

// DefaultQueryFilter returns the newest 100 events
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

func (f *QueryFilter) normalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultQueryFilter().Limit
	case f.Limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return f.Limit
	}
}

func (f *QueryFilter) matches(e *Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorID != "" && e.Actor.ID != f.ActorID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}
