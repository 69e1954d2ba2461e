// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package api provides the HTTP surface of the recommendation service.

# Routes

	GET  /health                           liveness, always 200 while the process serves
	GET  /health/ready                     readiness of DuckDB, the lookup store and the stream
	POST /api/v1/events                    ingest a cart event and return recommendations
	POST /api/v1/recommendations           recommendations only
	GET  /api/v1/features/users/{id}       user features from the lookup store
	GET  /api/v1/features/products/{id}    product features and catalog metadata
	POST /api/v1/auth/login                admin login, returns a JWT
	POST /api/v1/admin/pipeline/run        trigger a feature refresh (admin write)
	GET  /api/v1/admin/pipeline/status     current and last refresh
	GET  /api/v1/admin/store/stats         lookup store and outbox counters
	GET  /api/v1/admin/events/recent       archived event tail
	GET  /api/v1/admin/performance         per-route latency percentiles
	GET  /metrics                          Prometheus exposition
	GET  /swagger/*                        API documentation
	GET  /ws                               live event and pipeline feed

# Responses

Every endpoint answers with the models.APIResponse envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","request_id":"..."}}
	{"status":"error","error":{"code":"NOT_FOUND","message":"..."},"metadata":{...}}

POST /api/v1/events is the exception. Browser clients built against the
original gateway expect a flat body:

	{"message":"Data sent to stream successfully","record_id":"...","shard_id":"shardId-000000000042","recommendations":[...]}
	{"error":"...","message":"Failed to process request"}

# Middleware

Every request passes through request id assignment, real IP detection,
panic recovery, access logging, Prometheus instrumentation, the
performance monitor, response compression and CORS. Routes under
/api/v1 are rate limited per client IP. Admin routes additionally
require a Bearer token and a casbin policy match.
*/
package api
