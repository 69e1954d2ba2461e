// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/basketcast/internal/config"
)

// ServerConfig holds embedded NATS server configuration
type ServerConfig struct {
	Host              string
	Port              int // -1 picks a random port
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded server
func DefaultServerConfig(storeDir string) ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          storeDir,
		JetStreamMaxMem:   256 << 20, // 256MB
		JetStreamMaxStore: 10 << 30,  // 10GB
	}
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultPublisherConfig returns production defaults for publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		MaxReconnects:   -1, // Unlimited
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
	}
}

// SubscriberConfig holds subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds the consumer to an existing stream. Required for
	// wildcard topics, which cannot name a stream.
	StreamName string
}

// DefaultSubscriberConfig returns production defaults for subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "basket-archiver",
		QueueGroup:       "archivers",
		SubscribersCount: 2,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// StreamConfig defines the JetStream stream
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	DuplicateWindow time.Duration
	Replicas        int
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Settings bundles everything derived from the stream section of the
// application config
type Settings struct {
	Embedded   bool
	Server     ServerConfig
	Publisher  PublisherConfig
	Subscriber SubscriberConfig
	Stream     StreamConfig
	Breaker    CircuitBreakerConfig

	// SubjectPrefix is the first token of every event subject
	SubjectPrefix string
}

// SettingsFromConfig derives stream plumbing settings from cfg
func SettingsFromConfig(cfg *config.StreamConfig) (Settings, error) {
	if cfg.Name == "" || cfg.SubjectPrefix == "" {
		return Settings{}, fmt.Errorf("%w: stream name and subject prefix are required", ErrInvalidConfig)
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}

	sub := DefaultSubscriberConfig(cfg.URL)
	if cfg.DurableName != "" {
		sub.DurableName = cfg.DurableName
	}
	if cfg.QueueGroup != "" {
		sub.QueueGroup = cfg.QueueGroup
	}
	sub.StreamName = cfg.Name

	return Settings{
		Embedded:   cfg.EmbeddedServer,
		Server:     DefaultServerConfig(cfg.StoreDir),
		Publisher:  DefaultPublisherConfig(cfg.URL),
		Subscriber: sub,
		Stream: StreamConfig{
			Name:            cfg.Name,
			Subjects:        []string{WildcardTopic(cfg.SubjectPrefix)},
			MaxAge:          maxAge,
			MaxBytes:        -1,
			DuplicateWindow: 2 * time.Minute,
			Replicas:        1,
		},
		Breaker:       DefaultCircuitBreakerConfig("nats-publisher"),
		SubjectPrefix: cfg.SubjectPrefix,
	}, nil
}

// SetURL points the publisher and subscriber at url, e.g. the embedded
// server's client URL
func (s *Settings) SetURL(url string) {
	s.Publisher.URL = url
	s.Subscriber.URL = url
}

// Topic returns the subject for an event type. Characters that are not
// valid in a single subject token are replaced with '_'; an empty type
// becomes "unknown".
func Topic(prefix, eventType string) string {
	if eventType == "" {
		eventType = "unknown"
	}
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, eventType)
	return prefix + "." + token
}

// WildcardTopic matches every event subject under prefix
func WildcardTopic(prefix string) string {
	return prefix + ".>"
}
