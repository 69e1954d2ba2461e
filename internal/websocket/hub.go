// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeEvent             = "event"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypePipelineProgress  = "pipeline_progress"
	MessageTypePipelineCompleted = "pipeline_completed"
)

// broadcastBuffer is the hub's pending broadcast capacity
const broadcastBuffer = 256

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err().
//
// Shutdown is checked first and client lifecycle events are drained before
// broadcasts, so a message is never sent to a client that already left.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Int("total_clients", n).Msg("websocket client disconnected")
}

// shutdown closes all clients and logs why. Context cancellation is the
// expected path, so it is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients in id order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends message to every client in id order. Clients
// with a full send buffer are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		logging.Warn().Int("dropped_clients", len(toRemove)).Msg("websocket clients too slow, disconnected")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues a message for every client. It never blocks; when
// the broadcast buffer is full the message is dropped.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// EventData is the payload of an event message
type EventData struct {
	EventID      string                 `json:"event_id"`
	EventType    string                 `json:"event_type"`
	UserID       int64                  `json:"user_id"`
	PartitionKey uint32                 `json:"partition_key"`
	Source       string                 `json:"source"`
	ReceivedAt   string                 `json:"received_at"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// BroadcastEvent announces an archived event. The stored payload string is
// sent as an object when it parses as JSON.
func (h *Hub) BroadcastEvent(e *models.ArchivedEvent) {
	data := EventData{
		EventID:      e.EventID,
		EventType:    e.EventType,
		UserID:       e.UserID,
		PartitionKey: e.PartitionKey,
		Source:       e.Source,
		ReceivedAt:   e.ReceivedAt.UTC().Format(time.RFC3339),
	}
	if e.Payload != "" {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			data.Payload = payload
		}
	}
	h.BroadcastJSON(MessageTypeEvent, data)
}

// PipelineProgressData is the payload of a pipeline_progress message
type PipelineProgressData struct {
	RunID     string `json:"run_id"`
	Stage     string `json:"stage"`
	Timestamp string `json:"timestamp"`
}

// BroadcastPipelineProgress announces a pipeline stage transition
func (h *Hub) BroadcastPipelineProgress(runID, stage string) {
	h.BroadcastJSON(MessageTypePipelineProgress, PipelineProgressData{
		RunID:     runID,
		Stage:     stage,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	logging.Debug().Str("run_id", runID).Str("stage", stage).Int("clients", h.GetClientCount()).Msg("broadcast pipeline_progress")
}

// PipelineCompletedData is the payload of a pipeline_completed message
type PipelineCompletedData struct {
	RunID      string `json:"run_id"`
	DurationMs int64  `json:"duration_ms"`
	LookupRows int64  `json:"lookup_rows"`
	Users      int64  `json:"users"`
	Products   int64  `json:"products"`
	Timestamp  string `json:"timestamp"`
}

// BroadcastPipelineCompleted announces a finished feature refresh
func (h *Hub) BroadcastPipelineCompleted(data PipelineCompletedData) {
	if data.Timestamp == "" {
		data.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	h.BroadcastJSON(MessageTypePipelineCompleted, data)
	logging.Info().Str("run_id", data.RunID).Int("clients", h.GetClientCount()).Msg("broadcast pipeline_completed")
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
