// Package api exposes the CRUD HTTP surface for filter configurations
// and the label dictionary.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alertline/filtersvc/internal/config"
	"github.com/alertline/filtersvc/internal/metrics"
	"github.com/alertline/filtersvc/internal/store"
)

type ctxKey int

const userKey ctxKey = iota

// NewRouter creates the HTTP handler with all API routes.
func NewRouter(db *store.DB, m *metrics.Metrics, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	la := &labelsAPI{store: db}
	fa := &filtersAPI{store: db}

	// Label dictionary
	mux.HandleFunc("PUT /api/v1/filters/labels", la.create)
	mux.HandleFunc("GET /api/v1/filters/labels/all", la.list)
	mux.HandleFunc("GET /api/v1/filters/labels/{id}", la.get)
	mux.HandleFunc("POST /api/v1/filters/labels/{id}", la.update)
	mux.HandleFunc("DELETE /api/v1/filters/labels/{id}", la.delete)

	// Filter configurations
	mux.HandleFunc("PUT /api/v1/filters/config", fa.create)
	mux.HandleFunc("GET /api/v1/filters/config/all", fa.list)
	mux.HandleFunc("GET /api/v1/filters/config/{id}", fa.get)
	mux.HandleFunc("POST /api/v1/filters/config/{id}", fa.update)
	mux.HandleFunc("DELETE /api/v1/filters/config/{id}", fa.delete)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", m.Handler())

	return withMiddleware(mux, cfg.Server.Tokens)
}

// withMiddleware wraps the mux with panic recovery, request logging,
// and token authentication for the API routes. An empty token map
// disables authentication; every request then runs as "anonymous".
func withMiddleware(next http.Handler, tokens map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic in handler",
					"request_id", requestID,
					"path", r.URL.Path,
					"panic", err,
				)
				writeMsg(w, http.StatusInternalServerError, "Exception raised. Check logs for additional info")
			}
		}()

		username := "anonymous"
		if len(tokens) > 0 && strings.HasPrefix(r.URL.Path, "/api/") {
			user, ok := tokens[r.Header.Get("AuthToken")]
			if !ok {
				writeMsg(w, http.StatusUnauthorized, "invalid or missing auth token")
				return
			}
			username = user
		}

		ctx := context.WithValue(r.Context(), userKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))

		slog.Debug("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"user", username,
			"duration", time.Since(start),
		)
	})
}

// usernameFrom returns the authenticated username for the request.
func usernameFrom(r *http.Request) string {
	if user, ok := r.Context().Value(userKey).(string); ok {
		return user
	}
	return "anonymous"
}
