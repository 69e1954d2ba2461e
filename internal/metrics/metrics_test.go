// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getCounterValue extracts the value from a Prometheus counter
func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// getGaugeValue extracts the value from a Prometheus gauge
func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// getHistogramCount extracts the sample count from a histogram
func getHistogramCount(h prometheus.Observer) uint64 {
	metric, ok := h.(prometheus.Metric)
	if !ok {
		return 0
	}
	var m io_prometheus_client.Metric
	if err := metric.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordAPIRequest(t *testing.T) {
	counter := APIRequestsTotal.WithLabelValues("POST", "/api/v1/events", "200")
	before := getCounterValue(counter)

	RecordAPIRequest("POST", "/api/v1/events", "200", 15*time.Millisecond)

	if got := getCounterValue(counter); got != before+1 {
		t.Errorf("api_requests_total = %v, want %v", got, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := getGaugeValue(APIActiveRequests)
	TrackActiveRequest(true)
	if got := getGaugeValue(APIActiveRequests); got != before+1 {
		t.Errorf("after inc = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := getGaugeValue(APIActiveRequests); got != before {
		t.Errorf("after dec = %v, want %v", got, before)
	}
}

func TestRecordPipelineRun(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("integrity check failed"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := PipelineRunDuration.WithLabelValues(tt.status)
			before := getHistogramCount(h)

			RecordPipelineRun(3*time.Second, tt.err)

			if got := getHistogramCount(h); got != before+1 {
				t.Errorf("pipeline_run_duration_seconds{status=%q} count = %d, want %d", tt.status, got, before+1)
			}
		})
	}

	if getGaugeValue(PipelineLastSuccess) == 0 {
		t.Error("pipeline_last_success_timestamp not set after a successful run")
	}
}

func TestSetPipelineRows(t *testing.T) {
	SetPipelineRows("user_product_features", 4321)
	if got := getGaugeValue(PipelineRows.WithLabelValues("user_product_features")); got != 4321 {
		t.Errorf("pipeline_rows = %v, want 4321", got)
	}
}

func TestRecordModelInvocation(t *testing.T) {
	rowsBefore := getCounterValue(ModelRowsScored)
	errCounter := ModelInvocationErrors.WithLabelValues("mismatch")
	errBefore := getCounterValue(errCounter)

	RecordModelInvocation(12, 20*time.Millisecond, "")
	RecordModelInvocation(3, 5*time.Millisecond, "mismatch")

	if got := getCounterValue(ModelRowsScored); got != rowsBefore+15 {
		t.Errorf("model_rows_scored_total = %v, want %v", got, rowsBefore+15)
	}
	if got := getCounterValue(errCounter); got != errBefore+1 {
		t.Errorf("model_invocation_errors_total{reason=mismatch} = %v, want %v", got, errBefore+1)
	}
}

func TestRecordNATSPublish(t *testing.T) {
	okBefore := getCounterValue(NATSMessagesPublished)
	failBefore := getCounterValue(EventPublishFailures)

	RecordNATSPublish(nil)
	RecordNATSPublish(errors.New("nats: timeout"))

	if got := getCounterValue(NATSMessagesPublished); got != okBefore+1 {
		t.Errorf("nats_messages_published_total = %v, want %v", got, okBefore+1)
	}
	if got := getCounterValue(EventPublishFailures); got != failBefore+1 {
		t.Errorf("event_publish_failures_total = %v, want %v", got, failBefore+1)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		to   string
		want float64
	}{
		{"open", 2},
		{"half-open", 1},
		{"closed", 0},
	}
	for _, tt := range tests {
		t.Run(tt.to, func(t *testing.T) {
			RecordCircuitBreakerTransition("model-endpoint", "closed", tt.to)
			if got := getGaugeValue(CircuitBreakerState.WithLabelValues("model-endpoint")); got != tt.want {
				t.Errorf("circuit_breaker_state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutboxAndCacheHelpers(t *testing.T) {
	SetOutboxPending(7)
	if got := getGaugeValue(OutboxPending); got != 7 {
		t.Errorf("outbox_pending_entries = %v, want 7", got)
	}

	hit := CacheHits.WithLabelValues("recommendations")
	miss := CacheMisses.WithLabelValues("recommendations")
	hitBefore, missBefore := getCounterValue(hit), getCounterValue(miss)
	RecordCacheHit("recommendations")
	RecordCacheMiss("recommendations")
	if getCounterValue(hit) != hitBefore+1 || getCounterValue(miss) != missBefore+1 {
		t.Error("cache counters did not advance")
	}

	retried := OutboxRetries.WithLabelValues("dropped")
	before := getCounterValue(retried)
	RecordOutboxRetry("dropped")
	if getCounterValue(retried) != before+1 {
		t.Error("outbox_retries_total{result=dropped} did not advance")
	}
}
