package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatherhub/gatherhub/internal/external"
)

type contextKey string

const actorKey contextKey = "actor"

// Auth resolves the bearer token to a user id via the identity provider and
// stores it in the request context. Requests without a resolvable identity
// are rejected before they reach the service.
func Auth(identity external.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			userID, _, err := identity.ResolveToken(r.Context(), token)
			if err != nil || userID == "" {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// actorID returns the authenticated user id stored by Auth.
func actorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey).(string)
	return id
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// Logger is a minimal structured access log.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// CORS is a permissive CORS policy for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
