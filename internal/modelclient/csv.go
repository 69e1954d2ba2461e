// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package modelclient

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tomtom215/basketcast/internal/models"
)

// EncodeCSV renders rows as headerless CSV, each value formatted %f
func EncodeCSV(rows []models.FeatureVector) []byte {
	var buf bytes.Buffer
	buf.Grow(len(rows) * models.NumFeatures * 10)
	for i := range rows {
		for j, v := range rows[i] {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParsePredictions parses a newline-separated probability list. Blank lines
// are skipped. NaN and infinite values are rejected.
func ParsePredictions(body []byte) ([]float64, error) {
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	probs := make([]float64, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid probability %q: %w", i+1, line, err)
		}
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("line %d: non-finite probability %q", i+1, line)
		}
		probs = append(probs, p)
	}
	return probs, nil
}
