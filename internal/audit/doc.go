// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package audit records security-relevant admin activity: logins, lockouts and
manually triggered feature refreshes.

Events are written asynchronously through a buffered channel so a slow store
never delays the request that produced them. When the buffer is full the
event is dropped and a warning is logged.

# Storage

DuckDBStore keeps events in the audit_events table of the analytics
database. MemoryStore is a bounded in-process store used in tests and when
the table cannot be created.

# Retention

Logger.Serve implements suture.Service and deletes events older than
RetentionDays once per CleanupInterval.

# Usage

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil { ... }
	trail := audit.NewLogger(store, audit.ConfigFromSettings(&cfg.Audit))
	defer trail.Close()

	trail.LogAuthFailure(ctx, "admin", audit.SourceFromRequest(r), "invalid credentials")
*/
package audit
