package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jigardave8/icitizen-market/internal/logger"
)

type contextKey string

const actorKey contextKey = "actor_id"

// AuthMiddleware validates bearer JWTs on write routes. The token's sub
// claim becomes the acting identity, overriding any actor supplied in the
// request body. With no secret configured the middleware passes requests
// through untouched (dev mode).
type AuthMiddleware struct {
	secret string
	log    *logger.Logger
}

func NewAuthMiddleware(secret string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{secret: secret, log: log}
}

// Authenticate wraps a handler with bearer-token validation.
func (a *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "No bearer token")
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(a.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Invalid claims")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			respondError(w, http.StatusUnauthorized, "Token has no subject")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorID resolves the acting identity for a request: the authenticated
// token subject when present, otherwise the body-supplied fallback.
func actorID(r *http.Request, fallback string) string {
	if v, ok := r.Context().Value(actorKey).(string); ok && v != "" {
		return v
	}
	return fallback
}

// loggingMiddleware logs all HTTP requests.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Info("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

// corsMiddleware adds CORS headers (for development).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
