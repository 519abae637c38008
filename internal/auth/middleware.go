package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is used for storing claims in the request context.
type ContextKey string

// ClaimsKey holds the verified *Claims for the request.
const ClaimsKey ContextKey = "claims"

// Scope constants for the camera control surface.
const (
	// ScopeRead covers settings reads, capture status and telemetry.
	ScopeRead = "read"

	// ScopeControl covers settings writes, reloads and capture control.
	ScopeControl = "control"

	// ScopeSystem covers host shutdown/restart commands.
	ScopeSystem = "system"
)

// Middleware enforces authentication and scope-based authorization.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates auth middleware around a verifier.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth wraps a handler so it only runs with a valid bearer token.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope wraps a handler so it only runs when the verified claims
// carry every listed scope.
func (m *Middleware) RequireScope(requiredScopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !hasScopes(claims, requiredScopes) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

// ClaimsFromContext extracts verified claims, or nil when the request was
// not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// Subject returns the authenticated subject for audit trails, or "unknown"
// for unauthenticated requests.
func Subject(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return token, nil
}

func hasScopes(claims *Claims, required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range claims.Scopes {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// writeAuthError writes the API error envelope without depending on the api
// package, which sits above this one.
func writeAuthError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"result":  "error",
		"code":    code,
		"message": message,
	})
}
