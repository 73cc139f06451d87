package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRateLimitMiddleware(t *testing.T) {
	// Setup limiter: 1 req/sec, burst 2
	limiter := NewGlobalRateLimiter(1, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ts := httptest.NewServer(handler)
	defer ts.Close()

	client := ts.Client()

	// Bursts: 2 allowed immediately
	for i := 0; i < 2; i++ {
		resp, err := client.Get(ts.URL)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
		assert.Equal(t, http.StatusOK, resp.StatusCode, "Within burst limit")
		assert.NoError(t, resp.Body.Close())
	}

	// 3rd request arrives with the burst spent and no time for refill.
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Request 3 failed: %v", err)
	}
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "Exceeded burst")
	assert.NoError(t, resp.Body.Close())

	// Wait 1.1s for token refill
	time.Sleep(1100 * time.Millisecond)

	// 4th request should succeed
	resp, err = client.Get(ts.URL)
	if err != nil {
		t.Fatalf("Request 4 failed: %v", err)
	}
	assert.Equal(t, http.StatusOK, resp.StatusCode, "Refilled token")
	assert.NoError(t, resp.Body.Close())
}

func TestRateLimit_RetryAfterHeader(t *testing.T) {
	limiter := NewGlobalRateLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest("GET", "/generate-pdf", nil)
	first.RemoteAddr = "10.1.2.3:4444"
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest("GET", "/generate-pdf", nil)
	second.RemoteAddr = "10.1.2.3:4444"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, second)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_PerIP(t *testing.T) {
	limiter := NewGlobalRateLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First IP exhausts its bucket.
	req := httptest.NewRequest("GET", "/generate-pdf", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	blocked := httptest.NewRequest("GET", "/generate-pdf", nil)
	blocked.RemoteAddr = "10.0.0.1:2222"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, blocked)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "same IP shares the bucket")

	// A different IP is unaffected.
	other := httptest.NewRequest("GET", "/generate-pdf", nil)
	other.RemoteAddr = "10.0.0.2:3333"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code, "other IPs have their own bucket")
}

func TestRequestIDMiddleware_Generates(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDMiddleware_KeepsIncoming(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(requestIDHeader, "caller-supplied-id")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "caller-supplied-id", w.Header().Get(requestIDHeader))
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	auth := NewAPIKeyAuth("", "")
	assert.False(t, auth.Enabled())
}

func TestAPIKeyAuth_PlainKey(t *testing.T) {
	auth := NewAPIKeyAuth("s3cret", "")
	require.True(t, auth.Enabled())

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Missing key
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/generate-pdf", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong key
	req := httptest.NewRequest("POST", "/generate-pdf", nil)
	req.Header.Set("X-API-Key", "nope")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Right key via X-API-Key
	req = httptest.NewRequest("POST", "/generate-pdf", nil)
	req.Header.Set("X-API-Key", "s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Right key via Authorization: Bearer
	req = httptest.NewRequest("POST", "/generate-pdf", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewAPIKeyAuth("", string(hash))
	require.True(t, auth.Enabled())

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/generate-pdf", nil)
	req.Header.Set("X-API-Key", "s3cret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/generate-pdf", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuth_ProblemJSONOn401(t *testing.T) {
	auth := NewAPIKeyAuth("s3cret", "")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/generate-pdf", nil))

	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}
