package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempinbox/internal/provider"
)

func TestClient_Get_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "v", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", Options{})
	var out struct{ Name string }
	err := c.Get(context.Background(), "/thing", http.Header{"X-Test": {"v"}}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{})
	err := c.Get(context.Background(), "/missing", nil, nil)

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.False(t, provider.IsTransient(err))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{BreakerFailures: 2, BreakerCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := c.Get(ctx, "/", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	}

	err := c.Get(ctx, "/", nil, nil)
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{BreakerFailures: 1})
	for i := 0; i < 3; i++ {
		err := c.Get(context.Background(), "/", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_RetriesOnTooManyRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{MaxRetries: 2})
	err := c.Post(context.Background(), "/", nil, map[string]string{"a": "b"}, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, 500*time.Millisecond, retryAfterDuration(resp, 0))
	assert.Equal(t, 2*time.Second, retryAfterDuration(resp, 2))
	assert.Equal(t, 4*time.Second, retryAfterDuration(resp, 10))

	resp.Header.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, retryAfterDuration(resp, 0))
}
