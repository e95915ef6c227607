package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/http/response"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests with structured logging
func Logging(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{})(next)
}

type StructuredLogger struct{}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &StructuredLogEntry{
		request: r,
		start:   time.Now(),
	}
}

type StructuredLogEntry struct {
	request *http.Request
	start   time.Time
}

func (l *StructuredLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	logger.InfoContext(l.request.Context(), "HTTP request completed",
		"method", l.request.Method,
		"path", RedactPath(l.request.URL.Path),
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
		"user_agent", l.request.UserAgent(),
		"remote_addr", l.request.RemoteAddr,
	)
}

func (l *StructuredLogEntry) Panic(v interface{}, stack []byte) {
	logger.ErrorContext(l.request.Context(), "HTTP request panic",
		"panic", v,
		"stack", string(stack),
		"method", l.request.Method,
		"path", RedactPath(l.request.URL.Path),
	)
}

const publicBookingPrefix = "/public/booking/"

// RedactPath drops the secret half of a compound token in a booking link
// path. Only the token id is kept.
func RedactPath(path string) string {
	rest, ok := strings.CutPrefix(path, publicBookingPrefix)
	if !ok {
		return path
	}
	token, tail, _ := strings.Cut(rest, "/")
	id, _, hasSecret := strings.Cut(token, ".")
	if hasSecret {
		token = id + ".[redacted]"
	}
	out := publicBookingPrefix + token
	if tail != "" {
		out += "/" + tail
	}
	return out
}

// ServiceName adds service name to context for logging
func ServiceName(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), logger.ServiceKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Health answers /healthz. When check is set it must succeed within two
// seconds for the service to report ok.
func Health(check func(ctx context.Context) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			body := map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)}
			if check != nil {
				ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				if err := check(ctx); err != nil {
					logger.WarnContext(r.Context(), "Health check failed", "error", err)
					body["status"] = "degraded"
					response.WriteJSON(w, http.StatusServiceUnavailable, body)
					return
				}
			}
			response.WriteJSON(w, http.StatusOK, body)
		})
	}
}
