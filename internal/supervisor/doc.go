// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package supervisor runs the long-lived parts of the service under a suture
v4 supervisor tree.

# Layers

	basketcast (root)
	├── data-layer        feature refresh
	├── messaging-layer   stream consumer, outbox retry loop, outbox compactor, websocket hub
	└── api-layer         HTTP server

A service that returns an error or panics is restarted by its layer. When
failures exceed FailureThreshold within the decay window the layer backs off
for FailureBackoff before restarting again. A crash in the messaging layer
does not stop the API from serving recommendations.

Supervisor events are logged through sutureslog, which writes to the
zerolog-backed slog handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewFeatureRefreshService(pipeline, refreshCfg))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

Serve blocks until ctx is canceled. Each layer is then given ShutdownTimeout
to stop its services; UnstoppedServiceReport names any that did not.
*/
package supervisor
