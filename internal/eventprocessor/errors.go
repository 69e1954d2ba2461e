// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import "errors"

var (
	// ErrPublisherClosed is returned by Publish after Close
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedEvent is returned when a consumed message is not an event envelope
	ErrMalformedEvent = errors.New("malformed event")
)
