// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package eventprocessor is the event stream plumbing: an optional embedded
NATS JetStream server, stream provisioning, a Watermill publisher and a
durable Watermill subscriber that archives consumed events.

Flow:

	ingest ──► wal outbox ──► Publisher ──► JetStream <stream.name>
	                                            │
	                         Subscriber (durable, <prefix>.>)
	                                            │
	                        ArchiveHandler ──► DuckDB ingested_events
	                                       └─► websocket hub

Every message carries a Nats-Msg-Id equal to the outbox entry id, so
republished entries inside the stream's duplicate window are dropped by
JetStream. The publisher sits behind a gobreaker circuit breaker; when the
breaker is open, ingest still succeeds and the outbox retry loop delivers
the event once the stream recovers.
*/
package eventprocessor
