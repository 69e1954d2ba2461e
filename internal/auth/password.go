// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a wrong username or password
var ErrInvalidCredentials = errors.New("invalid username or password")

// bcryptCost matches the cost used for generated admin hashes
const bcryptCost = 12

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// AdminAuthenticator verifies the configured admin credentials
type AdminAuthenticator struct {
	username     string
	passwordHash string
}

// NewAdminAuthenticator creates an authenticator for one account.
func NewAdminAuthenticator(username, passwordHash string) *AdminAuthenticator {
	return &AdminAuthenticator{username: username, passwordHash: passwordHash}
}

// Authenticate returns the role of a valid login. The username comparison
// is constant time and bcrypt runs even when the username is wrong.
func (a *AdminAuthenticator) Authenticate(username, password string) (string, error) {
	if a.passwordHash == "" {
		return "", ErrInvalidCredentials
	}
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passwordErr := CheckPassword(a.passwordHash, password)
	if !usernameMatch || passwordErr != nil {
		return "", ErrInvalidCredentials
	}
	return RoleAdmin, nil
}
