package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"typerace/internal/game"
)

type contextKey int

const userIDKey contextKey = iota

// requireAuth verifies the bearer session token minted by the external
// identity provider, upserts the asserted identity, and stashes the
// user id on the request context. Token problems all surface as a
// generic unauthorized signal.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.Secret, nil
		})
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}

		user := &game.User{
			ID:              sub,
			Email:           stringClaim(claims, "email"),
			FirstName:       stringClaim(claims, "first_name"),
			LastName:        stringClaim(claims, "last_name"),
			ProfileImageURL: stringClaim(claims, "profile_image_url"),
			Username:        stringClaim(claims, "username"),
		}
		if user.Username == "" {
			user.Username = sub
		}
		if _, err := s.Game.UpsertUser(r.Context(), user); err != nil {
			log.Printf("[Auth] UpsertUser error: %v\n", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userID returns the authenticated user's id. Empty outside
// requireAuth-wrapped routes.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
