// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package websocket streams live updates to dashboards connected at /ws.

The Hub keeps the set of connected clients and fans out messages:

  - event: an ingested event, as archived by the stream consumer
  - pipeline_progress: a feature pipeline stage transition
  - pipeline_completed: a finished feature refresh with its row counts

Clients may send {"type":"ping"} and receive {"type":"pong"}. Slow
clients whose send buffer fills up are disconnected rather than blocking
the broadcast.

The hub runs as a supervised service through RunWithContext.
*/
package websocket
