// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package ingest accepts shopper events for the event stream.

Ingest enriches the caller's JSON object with a UTC timestamp and a source,
derives a partition key from the record, writes it to the durable outbox,
publishes it and confirms the outbox entry. A failed publish is not a
failed ingest: the event is already durable and the outbox retry loop
delivers it later.

The receipt mirrors a stream put: the record id is the message id, and the
shard id is the partition key formatted as shardId-<12 digits>.
*/
package ingest
