// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package recommend scores next-basket candidates for a user.
//
// # Flow
//
// A Recommend call:
//
//  1. reads the user's lookup rows (every product bought before)
//  2. builds extra candidates for any requested product ids from the user
//     and product feature tables, missing rows becoming zeros
//  3. standardizes the vectors with the stored scaler, if one was fitted
//  4. asks the model endpoint for reorder probabilities
//  5. keeps the top K by probability, ties broken by product id
//  6. joins product name, aisle and department
//
// Failures never surface to the shopper: they are logged and produce an
// empty list.
//
// # Caching
//
// Results are cached per (user, requested products) through a
// cache.ResultCache. Invalidate drops both the cached results and the
// loaded scaler and is registered as a feature pipeline completion hook.
//
// # Usage
//
//	engine := recommend.NewEngine(store, modelClient,
//	    recommend.WithTopK(10),
//	    recommend.WithCache(resultCache),
//	)
//	recs := engine.Recommend(ctx, recommend.Request{UserID: 42})
package recommend
