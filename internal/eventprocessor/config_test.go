// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package eventprocessor

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/basketcast/internal/config"
)

func TestTopic(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{"add_to_cart", "basket.events.add_to_cart"},
		{"", "basket.events.unknown"},
		{"page.view", "basket.events.page_view"},
		{"a b>*", "basket.events.a_b__"},
		{"Checkout-2", "basket.events.Checkout-2"},
	}
	for _, tt := range tests {
		if got := Topic("basket.events", tt.eventType); got != tt.want {
			t.Errorf("Topic(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
	if got := WildcardTopic("basket.events"); got != "basket.events.>" {
		t.Errorf("WildcardTopic() = %q", got)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	s, err := SettingsFromConfig(&config.StreamConfig{
		Name:           "BASKET_EVENTS",
		SubjectPrefix:  "basket.events",
		URL:            "nats://nats:4222",
		EmbeddedServer: true,
		StoreDir:       "/data/nats",
		DurableName:    "archiver",
		MaxAge:         48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("SettingsFromConfig() error = %v", err)
	}

	if diff := cmp.Diff([]string{"basket.events.>"}, s.Stream.Subjects); diff != "" {
		t.Errorf("Subjects mismatch (-want +got):\n%s", diff)
	}
	if s.Stream.MaxAge != 48*time.Hour || s.Stream.Name != "BASKET_EVENTS" {
		t.Errorf("Stream = %+v", s.Stream)
	}
	if s.Subscriber.StreamName != "BASKET_EVENTS" || s.Subscriber.DurableName != "archiver" {
		t.Errorf("Subscriber = %+v", s.Subscriber)
	}
	if s.Subscriber.QueueGroup != "archivers" {
		t.Errorf("QueueGroup = %q, want default", s.Subscriber.QueueGroup)
	}
	if !s.Embedded || s.Server.StoreDir != "/data/nats" {
		t.Errorf("Server = %+v embedded=%v", s.Server, s.Embedded)
	}

	s.SetURL("nats://127.0.0.1:1234")
	if s.Publisher.URL != "nats://127.0.0.1:1234" || s.Subscriber.URL != "nats://127.0.0.1:1234" {
		t.Errorf("SetURL() not applied: %+v %+v", s.Publisher, s.Subscriber)
	}
}

func TestSettingsFromConfig_Invalid(t *testing.T) {
	_, err := SettingsFromConfig(&config.StreamConfig{SubjectPrefix: "x"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}
