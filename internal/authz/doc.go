// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package authz authorizes authenticated admin requests with a casbin RBAC
// model. The model and default policy are embedded; a policy file on disk
// (SECURITY_POLICY_PATH) replaces the embedded policy.
package authz
