// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package features runs the batch feature pipeline and holds the vector
// assembly and standard scaling shared with the inference path.
package features

import "github.com/tomtom215/basketcast/internal/models"

// Vector assembles a candidate's ten features in models.FeatureColumns order.
// A nil side contributes zeros, the same as a left join with nulls filled as 0.
func Vector(u *models.UserFeatures, p *models.ProductFeatures) models.FeatureVector {
	var v models.FeatureVector
	if u != nil {
		v[0] = u.UserOrders
		v[1] = u.UserPeriods
		v[2] = u.UserMeanDaysSincePrior
		v[3] = u.UserProducts
		v[4] = u.UserDistinctProducts
		v[5] = u.UserReorderRatio
	}
	if p != nil {
		v[6] = p.ProdOrders
		v[7] = p.ProdReorders
		v[8] = p.ProdFirstOrders
		v[9] = p.ProdSecondOrders
	}
	return v
}
