// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package wal is the durable outbox in front of the event stream.

Every accepted event is written to BadgerDB before it is published and is
only confirmed once the stream acknowledged it. A publish failure leaves the
entry pending; the RetryLoop republishes pending entries with exponential
backoff and drops them, with an error log, after MaxRetries attempts.

Key layout:

	pending:<entry-id>    awaiting a successful publish
	confirmed:<entry-id>  published, removed by the Compactor

The entry id doubles as the stream message id, so a retry of an entry that
was in fact delivered is dropped by JetStream deduplication.

Lifecycle:

	w, err := wal.Open(wal.ConfigFromStream(&cfg.Stream))
	id, err := w.Write(ctx, subject, event)
	if err := publish(...); err == nil {
	    w.Confirm(ctx, id)
	}

	loop := wal.NewRetryLoop(w, publisher)   // supervised
	compactor := wal.NewCompactor(w)         // supervised
*/
package wal
