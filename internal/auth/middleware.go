// Releasewatch - New Music Release Notifications
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/releasewatch

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/releasewatch/internal/logging"
)

type contextKey string

// ClaimsContextKey holds the verified *Claims on authenticated requests.
const ClaimsContextKey contextKey = "claims"

// ClaimsFromContext returns the verified claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return c
}

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, err error)

// Middleware guards handlers with RequireAdmin.
type Middleware struct {
	jwt  *JWTManager
	deny DenyFunc
}

// NewMiddleware returns admin middleware. A nil manager disables the check,
// which is how an unset ADMIN_JWT_SECRET is expressed.
func NewMiddleware(jwtManager *JWTManager, deny DenyFunc) *Middleware {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int, err error) {
			http.Error(w, err.Error(), status)
		}
	}
	return &Middleware{jwt: jwtManager, deny: deny}
}

// Enabled reports whether tokens are checked.
func (m *Middleware) Enabled() bool {
	return m.jwt != nil
}

// RequireAdmin is chi middleware that accepts only admin bearer tokens.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	if m.jwt == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := extractBearer(r)
		if err != nil {
			m.deny(w, r, http.StatusUnauthorized, err)
			return
		}
		claims, err := m.jwt.ValidateToken(tokenString)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected admin token")
			m.deny(w, r, http.StatusUnauthorized, fmt.Errorf("unauthorized: invalid or expired token"))
			return
		}
		if claims.Role != RoleAdmin {
			m.deny(w, r, http.StatusForbidden, fmt.Errorf("forbidden: admin role required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClaimsContextKey, claims)))
	})
}

func extractBearer(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("unauthorized: missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("unauthorized: invalid authorization header")
	}
	return parts[1], nil
}
