package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestRedactPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/public/booking/abc.s3cr3t", "/public/booking/abc.[redacted]"},
		{"/public/booking/abc.s3cr3t/uploads", "/public/booking/abc.[redacted]/uploads"},
		{"/public/booking/abc", "/public/booking/abc"},
		{"/admin/bookings/123", "/admin/bookings/123"},
		{"/public/booking-intake", "/public/booking-intake"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactPath(tt.in), tt.in)
	}
}

func TestRequestID(t *testing.T) {
	var seen any
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(logger.RequestIDKey)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	Health(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	failing := func(context.Context) error { return errors.New("db down") }
	Health(failing)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	Health(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
