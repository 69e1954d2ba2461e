// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/basketcast/internal/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// testClient registers a client without a connection so tests can read its
// send channel directly
func testClient(t *testing.T, hub *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, buffer)}
	hub.Register <- c
	waitFor(t, func() bool { return hub.GetClientCount() > 0 })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHub_BroadcastEvent(t *testing.T) {
	hub := startHub(t)
	c := testClient(t, hub, 4)

	hub.BroadcastEvent(&models.ArchivedEvent{
		EventID:    "e1",
		EventType:  "add_to_cart",
		UserID:     3,
		Source:     "api-gateway",
		Payload:    `{"user_id":3,"product_ids":[1,2]}`,
		ReceivedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	msg := receive(t, c)
	if msg.Type != MessageTypeEvent {
		t.Fatalf("Type = %q, want %q", msg.Type, MessageTypeEvent)
	}
	data, ok := msg.Data.(EventData)
	if !ok {
		t.Fatalf("Data is %T, want EventData", msg.Data)
	}
	if data.EventID != "e1" || data.UserID != 3 || data.ReceivedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("data = %+v", data)
	}
	if data.Payload["user_id"] != float64(3) {
		t.Errorf("payload = %v, want parsed object", data.Payload)
	}
}

func TestHub_BroadcastPipelineMessages(t *testing.T) {
	hub := startHub(t)
	c := testClient(t, hub, 4)

	hub.BroadcastPipelineProgress("run-1", "build")
	hub.BroadcastPipelineCompleted(PipelineCompletedData{RunID: "run-1", LookupRows: 42})

	progress := receive(t, c)
	if progress.Type != MessageTypePipelineProgress {
		t.Errorf("first Type = %q", progress.Type)
	}
	if d := progress.Data.(PipelineProgressData); d.Stage != "build" || d.RunID != "run-1" {
		t.Errorf("progress = %+v", d)
	}

	completed := receive(t, c)
	d := completed.Data.(PipelineCompletedData)
	if completed.Type != MessageTypePipelineCompleted || d.LookupRows != 42 || d.Timestamp == "" {
		t.Errorf("completed = %+v", completed)
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := startHub(t)
	slow := testClient(t, hub, 1)

	hub.BroadcastJSON("x", 1)
	hub.BroadcastJSON("x", 2)

	waitFor(t, func() bool { return hub.GetClientCount() == 0 })

	// The buffered message is still readable, then the channel is closed
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("send channel should be closed after drop")
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := startHub(t)
	c := testClient(t, hub, 1)

	hub.Unregister <- c
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_RunWithContextShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	c := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
	hub.Register <- c
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("clients after shutdown = %d, want 0", hub.GetClientCount())
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %q", got)
	}

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %q", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", []string{"*"}, false},
		{"https://shop.example", []string{"*"}, true},
		{"https://shop.example", []string{"https://shop.example"}, true},
		{"https://evil.example", []string{"https://shop.example"}, false},
		{"https://shop.example", nil, false},
	}
	for _, tt := range tests {
		if got := originAllowed(tt.origin, tt.allowed); got != tt.want {
			t.Errorf("originAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
		}
	}
}

func TestHandler_PingPongAndBroadcast(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(Handler(hub, []string{"*"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://shop.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong Message
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if pong.Type != MessageTypePong {
		t.Errorf("Type = %q, want pong", pong.Type)
	}

	waitFor(t, func() bool { return hub.GetClientCount() == 1 })
	hub.BroadcastPipelineProgress("run-2", "publish")

	var progress struct {
		Type string               `json:"type"`
		Data PipelineProgressData `json:"data"`
	}
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if progress.Type != MessageTypePipelineProgress || progress.Data.Stage != "publish" {
		t.Errorf("progress = %+v", progress)
	}
}

func TestHandler_RejectsMissingOrigin(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(Handler(hub, []string{"*"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without Origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %v, want 403", resp)
	}
}
