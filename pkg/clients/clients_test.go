package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/testutil"
)

func TestHTTPClientBearerAndObserver(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.BearerToken = "secret_abc"
	cfg.RateLimit = 0
	c := NewHTTPClient(cfg, testutil.TestLogger(t))
	defer c.Close()

	var observed []int
	c.SetObserver(func(_ *http.Request, status int, _ time.Duration) {
		observed = append(observed, status)
	})

	req, err := c.NewRequest(context.Background(), http.MethodGet, srv.URL+"/v1/users", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer secret_abc", gotAuth)
	assert.Equal(t, cfg.UserAgent, gotUA)
	assert.Equal(t, []int{http.StatusTeapot}, observed)
	assert.Equal(t, int64(1), c.GetStats().TotalRequests)
}

func TestHTTPClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.RateLimit = 0
	c := NewHTTPClient(cfg, nil)

	var observed []int
	c.SetObserver(func(_ *http.Request, status int, _ time.Duration) { observed = append(observed, status) })

	req, err := c.NewRequest(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	_, err = c.Do(req)
	require.Error(t, err)
	assert.Equal(t, []int{0}, observed)
	assert.Equal(t, int64(1), c.GetStats().FailedRequests)
}

func TestHTTPConfigFromBase(t *testing.T) {
	bc := config.NewBaseConfig("notion", "notion")
	bc.Timeouts.Request = 15 * time.Second
	bc.Reliability.RateLimitPerSec = 2
	bc.Reliability.RateLimitBurst = 5

	cfg := HTTPConfigFromBase(bc)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2.0, cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateBurst)

	bc.Reliability.RateLimitPerSec = 0
	assert.Zero(t, HTTPConfigFromBase(bc).RateLimit)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))

	rl.SetRate(1000)
	rl.SetBurst(10)
	require.NoError(t, rl.Wait(context.Background()))

	stats := rl.GetStats()
	assert.Equal(t, 1000.0, stats.Rate)
	assert.Equal(t, 10, stats.Burst)
	assert.Equal(t, int64(3), stats.AllowedRequests)
	assert.Equal(t, int64(2), stats.BlockedRequests)
}
