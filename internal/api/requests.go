// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/recommend"
)

var (
	errMissingUserID = errors.New("user_id is required")
	errNotAnInteger  = errors.New("must be an integer")
)

// recommendationRequest extracts user_id and product_ids from a decoded
// body. Browser clients send ids as numbers or numeric strings, and
// product_ids may also arrive as one comma-separated string.
func recommendationRequest(payload map[string]interface{}) (recommend.Request, error) {
	raw, ok := payload["user_id"]
	if !ok || raw == nil {
		return recommend.Request{}, errMissingUserID
	}
	userID, err := parseID(raw)
	if err != nil {
		return recommend.Request{}, fmt.Errorf("user_id %w", err)
	}

	productIDs, err := parseIDList(payload["product_ids"])
	if err != nil {
		return recommend.Request{}, err
	}
	return recommend.Request{UserID: userID, ProductIDs: productIDs}, nil
}

func parseID(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, errNotAnInteger
		}
		return int64(n), nil
	case json.Number:
		id, err := n.Int64()
		if err != nil {
			return 0, errNotAnInteger
		}
		return id, nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, errNotAnInteger
		}
		return id, nil
	}
	return 0, errNotAnInteger
}

// parseIDList accepts a JSON array or a comma-separated string. Blank
// entries are skipped.
func parseIDList(v interface{}) ([]int64, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case string:
		var ids []int64
		for i, part := range strings.Split(list, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, fmt.Errorf("product_ids[%d] %w", i, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	case []interface{}:
		ids := make([]int64, 0, len(list))
		for i, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			id, err := parseID(item)
			if err != nil {
				return nil, fmt.Errorf("product_ids[%d] %w", i, err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("product_ids must be an array or a comma-separated string")
}
