// ProfileMap - User Profiles and Geographic Visualization
// Copyright 2026 Atlas HQ
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atlashq/profilemap

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atlashq/profilemap/internal/config"
)

// Claims represents JWT claims for an authenticated user.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// JWTManager handles JWT token creation and validation using HS256.
type JWTManager struct {
	secret        []byte
	timeout       time.Duration
	rememberMeFor time.Duration
}

// NewJWTManager creates a JWT token manager from the security config.
// The secret is stored as []byte to prevent string interning attacks.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	rememberMe := cfg.RememberMeFor
	if rememberMe <= 0 {
		rememberMe = cfg.SessionTimeout
	}

	return &JWTManager{
		secret:        []byte(cfg.JWTSecret),
		timeout:       cfg.SessionTimeout,
		rememberMeFor: rememberMe,
	}, nil
}

// GenerateToken creates a signed token for an authenticated user.
// rememberMe extends the expiry to the configured remember-me duration.
func (m *JWTManager) GenerateToken(userID, username, role, sessionID string, rememberMe bool) (string, time.Time, error) {
	timeout := m.timeout
	if rememberMe {
		timeout = m.rememberMeFor
	}

	now := time.Now()
	expiresAt := now.Add(timeout)

	claims := &Claims{
		UserID:    userID,
		Username:  username,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// ValidateToken validates a token string and extracts the user claims.
// Tokens signed with any algorithm other than HMAC are rejected to
// prevent algorithm confusion attacks.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
