package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/verdict/pkg/logger"
	"github.com/okian/verdict/pkg/metrics"
)

const maxRequestIDLen = 128

// MetricsMiddleware records request count, latency and error class for
// endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := record(w)
		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Milliseconds()))
		if class := errorClass(rec.status); class != "" {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
		}
	}
}

// RequestIDMiddleware tags the request context with the caller's X-Request-ID,
// or a fresh uuid, echoes it back, and logs the finished request.
func RequestIDMiddleware(next http.HandlerFunc, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequest))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(HeaderRequest, id)

		start := time.Now()
		rec := record(w)
		next.ServeHTTP(rec, r.WithContext(ctx))

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)),
		}
		if rec.status >= http.StatusInternalServerError {
			log.Error(ctx, "request failed", fields...)
			return
		}
		log.Debug(ctx, "request served", fields...)
	}
}

// errorClass buckets a failing status for the error counter. Successful
// statuses return "".
func errorClass(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return ""
	}
}

// statusRecorder remembers the status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
