// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package services adapts basketcast components to suture.Service so they can
be run by the supervisor tree.

Each wrapper translates a component's own lifecycle into Serve(ctx):

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - OutboxRetryLoopService and OutboxCompactorService: Start, wait, Stop
  - RunService: any blocking run function, such as the websocket hub
  - FeatureRefreshService: runs the feature pipeline on a schedule

Wrappers take small interfaces and are tested with in-package fakes.
*/
package services
