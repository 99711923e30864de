package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"totobot/internal/metrics"
	logx "totobot/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthz(t *testing.T) {
	healthy := true
	s := New(Config{}, func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("store closed")
	}, logx.Nop())
	h := s.Handler(Config{Addr: "127.0.0.1:0"})

	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	healthy = false
	code, body = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "store closed")
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.BroadcastsTotal.Inc()
	h := New(Config{}, nil, logx.Nop()).Handler(Config{})
	code, body := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "totobot_broadcasts_total")
}

func TestPprofOnlyOnLoopback(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())

	code, _ := get(t, s.Handler(Config{Addr: "127.0.0.1:9090", Pprof: true}), "/debug/pprof/cmdline")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, s.Handler(Config{Addr: "0.0.0.0:9090", Pprof: true}), "/debug/pprof/cmdline")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, s.Handler(Config{Addr: "127.0.0.1:9090"}), "/debug/pprof/cmdline")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, isLoopbackAddr("127.0.0.1:9090"))
	assert.True(t, isLoopbackAddr("localhost:9090"))
	assert.True(t, isLoopbackAddr("[::1]:9090"))
	assert.False(t, isLoopbackAddr(":9090"))
	assert.False(t, isLoopbackAddr("10.0.0.5:9090"))
	assert.False(t, isLoopbackAddr("garbage"))
}

func TestStartStopIdempotent(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop(ctx)
	s.Stop(ctx)
	assert.True(t, s.Enabled())

	s.Reconfigure(ctx, Config{Enabled: false})
	assert.False(t, s.Enabled())
}
