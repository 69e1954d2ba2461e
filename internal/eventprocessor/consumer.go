// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/basketcast/internal/logging"
)

// HandlerFunc processes one message. A returned error nacks the message
// so JetStream redelivers it.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// errSubscriptionClosed is returned when the message channel closes while
// the service is still wanted. The supervisor restarts it.
var errSubscriptionClosed = errors.New("subscription closed")

// ConsumerService consumes one topic as a supervised service.
type ConsumerService struct {
	name  string
	sub   *Subscriber
	topic string
	fn    HandlerFunc
}

// NewConsumerService creates a service consuming topic with fn.
func NewConsumerService(name string, sub *Subscriber, topic string, fn HandlerFunc) *ConsumerService {
	return &ConsumerService{name: name, sub: sub, topic: topic, fn: fn}
}

// Serve consumes until ctx is canceled.
func (s *ConsumerService) Serve(ctx context.Context) error {
	messages, err := s.sub.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("%s: subscribe to %s: %w", s.name, s.topic, err)
	}
	logger := logging.WithComponent(s.name)
	logger.Info().Str("topic", s.topic).Msg("Event consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error().Str("topic", s.topic).Msg("Event subscription closed unexpectedly")
				return fmt.Errorf("%s: %w", s.name, errSubscriptionClosed)
			}
			if err := s.dispatch(ctx, msg); err != nil {
				logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Event handling failed, message nacked")
			}
		}
	}
}

// dispatch runs fn and settles msg: ack on success, nack on error.
func (s *ConsumerService) dispatch(ctx context.Context, msg *message.Message) error {
	if s.fn == nil {
		msg.Ack()
		return nil
	}
	if err := s.fn(ctx, msg); err != nil {
		msg.Nack()
		return err
	}
	msg.Ack()
	return nil
}

func (s *ConsumerService) String() string {
	return s.name
}
