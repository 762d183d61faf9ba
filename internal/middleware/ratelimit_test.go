package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zjoart/varlixo/pkg/utils"
	"golang.org/x/time/rate"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(2), 2)
	defer rl.Stop()

	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	makeRequest := func(ip, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, makeRequest("192.168.1.1", ""))
	assert.Equal(t, http.StatusOK, makeRequest("192.168.1.1", ""))
	assert.Equal(t, http.StatusTooManyRequests, makeRequest("192.168.1.1", ""))

	assert.Equal(t, http.StatusOK, makeRequest("192.168.1.2", ""))

	// behind the proxy each forwarded client gets its own bucket
	assert.Equal(t, http.StatusOK, makeRequest("10.0.0.1", "203.0.113.7"))
	assert.Equal(t, http.StatusOK, makeRequest("10.0.0.1", "203.0.113.8, 10.0.0.1"))
}

func TestLoggingMiddleware(t *testing.T) {
	var seen interface{}
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(utils.RequestIDKey)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/plans", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, rr.Header().Get("X-Request-ID"), seen)
	assert.Empty(t, rr.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}
