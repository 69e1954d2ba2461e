// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package modelclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/metrics"
	"github.com/tomtom215/basketcast/internal/models"
)

var (
	// ErrPredictionMismatch is returned when the endpoint returns a different
	// number of probabilities than rows sent
	ErrPredictionMismatch = errors.New("prediction count does not match row count")

	// ErrNoRows is returned when Predict is called without rows
	ErrNoRows = errors.New("no rows to score")
)

// maxResponseSize bounds how much of an endpoint response is read
const maxResponseSize = 16 << 20

// maxErrorBodySize bounds the response excerpt included in errors
const maxErrorBodySize = 1024

// Predictor scores feature rows. Implemented by *Client and by test fakes.
type Predictor interface {
	Predict(ctx context.Context, rows []models.FeatureVector) ([]float64, error)
}

// StatusError is returned for non-2xx endpoint responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is a rate-limited, circuit-broken model endpoint client.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	invokeURL  string
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]float64]
	name       string
}

// New creates a client for cfg. A zero RequestsPerSec disables rate limiting.
func New(cfg *config.ModelConfig) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid model url %q: %w", cfg.URL, err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	name := "model-endpoint"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A bad row count is the caller's problem, not the endpoint's
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPredictionMismatch) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		invokeURL:  fmt.Sprintf("%s/endpoints/%s/invocations", base, url.PathEscape(cfg.EndpointName)),
		limiter:    rate.NewLimiter(limit, burst),
		cb:         cb,
		name:       name,
	}, nil
}

// InvokeURL returns the endpoint invocation URL
func (c *Client) InvokeURL() string {
	return c.invokeURL
}

// State returns the current breaker state
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

// Predict scores rows and returns one probability per row, in row order
func (c *Client) Predict(ctx context.Context, rows []models.FeatureVector) ([]float64, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordModelInvocation(0, 0, "rate_limited")
		return nil, fmt.Errorf("model rate limiter: %w", err)
	}

	start := time.Now()
	probs, err := c.cb.Execute(func() ([]float64, error) {
		return c.invoke(ctx, rows)
	})
	metrics.RecordModelInvocation(len(rows), time.Since(start), failureReason(err))
	if err != nil {
		return nil, err
	}
	return probs, nil
}

func (c *Client) invoke(ctx context.Context, rows []models.FeatureVector) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.invokeURL, bytes.NewReader(EncodeCSV(rows)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke model endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := body
		if len(excerpt) > maxErrorBodySize {
			excerpt = excerpt[:maxErrorBodySize]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	probs, err := ParsePredictions(body)
	if err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	if len(probs) != len(rows) {
		return nil, fmt.Errorf("%w: sent %d rows, got %d probabilities", ErrPredictionMismatch, len(rows), len(probs))
	}
	return probs, nil
}

// failureReason maps an invocation error to a metric label
func failureReason(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrPredictionMismatch):
		return "mismatch"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &statusErr):
		return "http_status"
	default:
		return "transport"
	}
}
