package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	anonIDKey contextKey = "anon_id"
)

// AnonCookieName is the cookie holding the anonymous visitor token
const AnonCookieName = "anon_id"

// AnonCookieMaxAge is the visitor cookie lifetime in seconds (30 days)
const AnonCookieMaxAge = 30 * 24 * 60 * 60

// TokenValidator resolves an access token to a user public ID
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := validator.ValidateJWT(parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AnonymousVisitor makes sure every request carries a visitor token. A
// missing or malformed anon_id cookie is replaced with a fresh one, and the
// cookie is refreshed to a full 30 days on every response.
func AnonymousVisitor(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			anonID := ""
			if c, err := r.Cookie(AnonCookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					anonID = c.Value
				}
			}
			if anonID == "" {
				anonID = uuid.New().String()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     AnonCookieName,
				Value:    anonID,
				Path:     "/",
				MaxAge:   AnonCookieMaxAge,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), anonIDKey, anonID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetAnonID extracts the visitor token from context
func GetAnonID(ctx context.Context) string {
	anonID, ok := ctx.Value(anonIDKey).(string)
	if !ok {
		return ""
	}
	return anonID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ValidateWebSocketToken validates JWT token from WebSocket query parameter
func ValidateWebSocketToken(token string, validator TokenValidator) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token required")
	}
	return validator.ValidateJWT(token)
}
