// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/eventprocessor"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/supervisor"
	"github.com/tomtom215/basketcast/internal/supervisor/services"
	"github.com/tomtom215/basketcast/internal/wal"
)

// StreamComponents holds the event stream plumbing. It is nil when the
// stream is disabled.
type StreamComponents struct {
	settings   eventprocessor.Settings
	server     *eventprocessor.EmbeddedServer
	manager    *eventprocessor.StreamManager
	publisher  *eventprocessor.Publisher
	subscriber *eventprocessor.Subscriber
	outbox     *wal.BadgerWAL
	retryLoop  *wal.RetryLoop
	compactor  *wal.Compactor
}

// InitStream starts the embedded server when configured, provisions the
// stream and opens the publisher, subscriber and outbox.
func InitStream(ctx context.Context, cfg *config.StreamConfig) (*StreamComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Event stream disabled (STREAM_ENABLED=false)")
		return nil, nil
	}

	settings, err := eventprocessor.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	c := &StreamComponents{settings: settings}

	if settings.Embedded {
		c.server, err = eventprocessor.NewEmbeddedServer(&settings.Server)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		settings.SetURL(c.server.ClientURL())
		c.settings = settings
	}

	c.manager, err = eventprocessor.NewStreamManager(settings.Publisher.URL, &settings.Stream)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	if _, err := c.manager.EnsureStream(ctx); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("provision stream %s: %w", settings.Stream.Name, err)
	}

	c.publisher, err = eventprocessor.NewPublisher(settings.Publisher, logging.NewWatermillLogger())
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	c.publisher.SetCircuitBreaker(eventprocessor.NewCircuitBreaker(settings.Breaker))

	if cfg.ArchiveEvents {
		c.subscriber, err = eventprocessor.NewSubscriber(&settings.Subscriber, logging.NewWatermillLogger())
		if err != nil {
			c.Close(ctx)
			return nil, err
		}
	}

	c.outbox, err = wal.Open(wal.ConfigFromStream(cfg))
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	c.retryLoop = wal.NewRetryLoop(c.outbox, c.publisher)
	c.compactor = wal.NewCompactor(c.outbox)

	logging.Info().
		Str("stream", settings.Stream.Name).
		Str("url", settings.Publisher.URL).
		Bool("embedded", settings.Embedded).
		Bool("archive_events", cfg.ArchiveEvents).
		Msg("Event stream initialized")

	return c, nil
}

// AddToSupervisor registers the consumer and outbox services. archive
// receives consumed events; broadcaster may be nil.
func (c *StreamComponents) AddToSupervisor(tree *supervisor.SupervisorTree, archive eventprocessor.EventArchive, broadcaster eventprocessor.EventBroadcaster) {
	if c == nil {
		return
	}
	if c.subscriber != nil {
		handler := eventprocessor.NewArchiveHandler(archive, broadcaster)
		tree.AddMessagingService(eventprocessor.NewConsumerService(
			"event-archiver", c.subscriber, eventprocessor.WildcardTopic(c.settings.SubjectPrefix), handler.Handle))
	}
	tree.AddMessagingService(services.NewOutboxRetryLoopService(c.retryLoop))
	tree.AddMessagingService(services.NewOutboxCompactorService(c.compactor))
}

// Close releases everything in reverse start order.
func (c *StreamComponents) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.outbox != nil {
		if err := c.outbox.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing outbox")
		}
	}
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS subscriber")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS publisher")
		}
	}
	if c.manager != nil {
		c.manager.Close()
	}
	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS")
		}
	}
}
