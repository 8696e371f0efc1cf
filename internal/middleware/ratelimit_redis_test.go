package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitFixture(t *testing.T, limit int) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := NewRedisRateLimitMiddleware(client, limit)
	return m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/bridge/sessions/s1/status", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRedisRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		handler := newRateLimitFixture(t, 5)

		for i := 0; i < 5; i++ {
			rec := doRequest(handler, "10.0.0.1:1234")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("rejects requests over the limit", func(t *testing.T) {
		handler := newRateLimitFixture(t, 3)

		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234").Code)
		}

		rec := doRequest(handler, "10.0.0.1:1234")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	})

	t.Run("limits are per client host", func(t *testing.T) {
		handler := newRateLimitFixture(t, 2)

		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234").Code)
		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234").Code)
		require.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1234").Code)

		assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1234").Code)
	})

	t.Run("connections from one host share a bucket", func(t *testing.T) {
		handler := newRateLimitFixture(t, 2)

		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:40001").Code)
		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:40002").Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:40003").Code)
	})

	t.Run("bare ip survives as the key", func(t *testing.T) {
		handler := newRateLimitFixture(t, 1)

		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1").Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1").Code)
	})

	t.Run("sets informational headers", func(t *testing.T) {
		handler := newRateLimitFixture(t, 10)

		rec := doRequest(handler, "10.0.0.1:1234")
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("fails open when redis is down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		m := NewRedisRateLimitMiddleware(client, 1)
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		mr.Close()

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234").Code)
		}
	})
}
