// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package models

import "time"

// Recommendation is one scored product returned to the shopper.
// Metadata fields are empty when the product is missing from the catalog.
type Recommendation struct {
	ProductID   int64   `json:"product_id"`
	Probability float64 `json:"probability"`
	ProductName string  `json:"product_name"`
	Department  string  `json:"department"`
	Aisle       string  `json:"aisle"`
}

// ScalerParams are the per-column mean and standard deviation fitted on the
// lookup table. A zero value means no scaling is applied.
type ScalerParams struct {
	Mean     FeatureVector `json:"mean"`
	Std      FeatureVector `json:"std"`
	FittedAt time.Time     `json:"fitted_at"`
	RowsUsed int64         `json:"rows_used"`
}

// IngestEvent is the envelope written to the event stream. Payload holds the
// caller's JSON body, already enriched with timestamp and source.
type IngestEvent struct {
	EventID      string                 `json:"event_id"`
	EventType    string                 `json:"event_type"`
	UserID       int64                  `json:"user_id"`
	PartitionKey uint32                 `json:"partition_key"`
	Timestamp    string                 `json:"timestamp"`
	Source       string                 `json:"source"`
	Payload      map[string]interface{} `json:"payload"`
}

// ArchivedEvent is an ingested event as stored in the event archive.
type ArchivedEvent struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	UserID       int64     `json:"user_id"`
	PartitionKey uint32    `json:"partition_key"`
	Source       string    `json:"source"`
	Payload      string    `json:"payload"`
	ReceivedAt   time.Time `json:"received_at"`
}
