// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package main is the basketcast server.

It serves next-basket recommendations over HTTP, accepts shopper events into
a NATS JetStream stream, and rebuilds the feature lookup tables from order
history on a schedule.

# Supervisor Tree

	basketcast
	├── data-layer
	│   ├── feature-refresh (FEATURES_REFRESH_ENABLED=true)
	│   └── audit-retention (AUDIT_ENABLED=true)
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── event-archiver (STREAM_ARCHIVE_EVENTS=true)
	│   ├── outbox-retry-loop
	│   └── outbox-compactor
	└── api-layer
	    └── http-server

# Startup Order

 1. Configuration (koanf: defaults, config.yaml, environment)
 2. Logging (zerolog)
 3. DuckDB analytics database
 4. BadgerDB feature lookup store
 5. Event stream: embedded NATS, stream provisioning, publisher, outbox
 6. Result cache (Redis or in-process LRU)
 7. Model endpoint client and recommendation engine
 8. Feature pipeline with websocket and cache hooks
 9. Audit trail (DuckDB, memory fallback), admin authentication and Casbin authorization
 10. HTTP router and supervisor tree

Shutdown runs in reverse: the tree stops the HTTP server and background
services, then the stream, cache, store and database are closed.

# Example

	export FEATURES_DATA_DIR=/data/instacart
	export MODEL_URL=http://model:8080
	export ENDPOINT_NAME=xgboost-endpoint
	export JWT_SECRET=$(openssl rand -base64 32)
	export ADMIN_PASSWORD_HASH='$2a$10$...'
	./basketcast
*/
package main
