// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package features

import (
	"math"
	"time"

	"github.com/tomtom215/basketcast/internal/models"
)

// Scaler standardizes feature vectors with a fitted per-column mean and
// population standard deviation. A nil or zero Scaler passes vectors through.
type Scaler struct {
	params models.ScalerParams
}

// NewScaler wraps stored parameters. nil yields a pass-through scaler.
func NewScaler(p *models.ScalerParams) *Scaler {
	if p == nil {
		return &Scaler{}
	}
	return &Scaler{params: *p}
}

// Fit computes the scaler over rows.
func Fit(rows []models.FeatureVector) *Scaler {
	var f ScalerFitter
	for i := range rows {
		f.Add(&rows[i])
	}
	return NewScaler(f.Params())
}

// IsZero reports whether the scaler was never fitted
func (s *Scaler) IsZero() bool {
	return s == nil || s.params.RowsUsed == 0
}

// Params returns a copy of the fitted parameters
func (s *Scaler) Params() models.ScalerParams {
	return s.params
}

// Transform returns (x - mean) / std per column. A column with zero standard
// deviation carries no information and maps to 0.
func (s *Scaler) Transform(v models.FeatureVector) models.FeatureVector {
	if s.IsZero() {
		return v
	}
	var out models.FeatureVector
	for i := range v {
		if s.params.Std[i] == 0 {
			continue
		}
		out[i] = (v[i] - s.params.Mean[i]) / s.params.Std[i]
	}
	return out
}

// ScalerFitter accumulates column statistics one row at a time using
// Welford's online algorithm, so the lookup table never has to be held in
// memory. The zero value is ready to use.
type ScalerFitter struct {
	n    int64
	mean models.FeatureVector
	m2   models.FeatureVector
}

// Add folds one row into the running statistics
func (f *ScalerFitter) Add(v *models.FeatureVector) {
	f.n++
	n := float64(f.n)
	for i := range v {
		delta := v[i] - f.mean[i]
		f.mean[i] += delta / n
		f.m2[i] += delta * (v[i] - f.mean[i])
	}
}

// Count returns the number of rows added
func (f *ScalerFitter) Count() int64 {
	return f.n
}

// Params returns the fitted parameters, or nil when no rows were added
func (f *ScalerFitter) Params() *models.ScalerParams {
	if f.n == 0 {
		return nil
	}
	p := &models.ScalerParams{
		Mean:     f.mean,
		FittedAt: time.Now().UTC(),
		RowsUsed: f.n,
	}
	for i := range f.m2 {
		p.Std[i] = math.Sqrt(f.m2[i] / float64(f.n))
	}
	return p
}
