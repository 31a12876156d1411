package rest

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"
)

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a route with panic recovery, request logging and the HTTP
// metric pair. The route label is the registered pattern, not the raw path,
// to keep metric cardinality bounded.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if recovered := recover(); recovered != nil {
				h.logger.Error("handler panicked",
					"route", route,
					"panic", recovered,
					"stack", string(debug.Stack()))
				writeError(rec, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}

			elapsed := time.Since(start)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

			h.logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed))
		}()

		next(rec, r)
	}
}
