// Package router configures the HTTP routes of a romcv process.
//
// Routes configured:
//   - GET /report/current?method=<name> - latest cross-validation report
//   - GET /healthz - 200 once a report exists, 503 before
//   - GET /metrics - Prometheus metrics endpoint
//
// Reports are served as stored. A poisoned mean relative error is JSON null.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/romcv/pkg/httpx"
	"github.com/HatiCode/romcv/pkg/regression"
	"github.com/HatiCode/romcv/pkg/storage"
)

// SetupRoutes returns the handler serving store. ready backs /healthz and
// gatherer backs /metrics.
func SetupRoutes(store storage.Store, ready func() error, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(ready))
	mux.HandleFunc("GET /report/current", handleGetReport(store, logger))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return httpx.LoggingMiddleware(logger)(httpx.RecoveryMiddleware(logger)(mux))
}

// handleGetReport returns a handler for GET /report/current?method=<name>.
func handleGetReport(store storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("method")
		if name == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "method parameter required")
			return
		}
		method, err := regression.ParseMethod(name)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, method.String())
		if err != nil {
			logger.Error("failed to get report", "method", method, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no report for method %q", method))
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
