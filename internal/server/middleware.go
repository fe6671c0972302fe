package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"ordenapp/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	userContextKey contextKey = "user"
)

// Claims are the JWT claims issued by the identity service
type Claims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware verifies the bearer token and puts its claims in the request context
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			writeAppError(w, errUnauthorized)
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if s.config.JWT.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(s.config.JWT.Issuer))
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.config.JWT.Secret), nil
		}, opts...)
		if err != nil || !token.Valid || claims.UserID <= 0 {
			writeAppError(w, errUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// roleMiddleware restricts access based on user role. Admin always has access.
func (s *Server) roleMiddleware(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := getUserClaims(r)
			if claims == nil {
				writeAppError(w, errUnauthorized)
				return
			}
			if claims.Role != domain.RoleAdmin && !slices.Contains(allowedRoles, claims.Role) {
				writeAppError(w, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getUserClaims extracts user claims from request context
func getUserClaims(r *http.Request) *Claims {
	claims, ok := r.Context().Value(userContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// actorID returns the authenticated user id, 0 when unauthenticated
func actorID(r *http.Request) int64 {
	if claims := getUserClaims(r); claims != nil {
		return claims.UserID
	}
	return 0
}

// getURLParam is a helper to get URL parameters
func getURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
