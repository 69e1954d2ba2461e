// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketcast/internal/logging"
)

const (
	serverReadyTimeout = 30 * time.Second
	maxEventPayload    = 1 << 20
)

// EmbeddedServer runs NATS with JetStream inside the basketcast process, so
// a single-node deployment needs no separate broker.
type EmbeddedServer struct {
	ns *server.Server
}

// NewEmbeddedServer starts the server and blocks until it accepts clients.
func NewEmbeddedServer(cfg *ServerConfig) (*EmbeddedServer, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName:         "basketcast-events",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		MaxPayload:         maxEventPayload,
		NoSigs:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("configure embedded NATS: %w", err)
	}
	ns.SetLogger(natsLogger{logging.WithComponent("nats-server")}, false, false)

	go ns.Start()
	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS not ready after %v", serverReadyTimeout)
	}

	logging.Info().
		Str("url", ns.ClientURL()).
		Str("store_dir", cfg.StoreDir).
		Msg("Embedded NATS JetStream server started")
	return &EmbeddedServer{ns: ns}, nil
}

// ClientURL is the nats:// URL publishers and subscribers connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

// Shutdown stops the server and waits for JetStream to flush, or until ctx
// is done.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.ns.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.ns.WaitForShutdown()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the server is accepting clients.
func (s *EmbeddedServer) IsRunning() bool {
	return s.ns.Running()
}

// JetStreamEnabled reports whether JetStream came up.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return s.ns.JetStreamEnabled()
}

// natsLogger routes nats-server logs through zerolog. Debug and trace are
// off, so only notices and above arrive here.
type natsLogger struct {
	log zerolog.Logger
}

func (l natsLogger) Noticef(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l natsLogger) Warnf(format string, v ...interface{})   { l.log.Warn().Msgf(format, v...) }
func (l natsLogger) Errorf(format string, v ...interface{})  { l.log.Error().Msgf(format, v...) }
func (l natsLogger) Fatalf(format string, v ...interface{})  { l.log.Error().Msgf(format, v...) }
func (l natsLogger) Debugf(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l natsLogger) Tracef(format string, v ...interface{})  { l.log.Trace().Msgf(format, v...) }
