package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHandshake(t *testing.T) {
	ok := HandshakeCounter.WithLabelValues("TEST", "ok")
	failed := HandshakeCounter.WithLabelValues("TEST", "error")

	ObserveHandshake("TEST", time.Now(), nil)
	ObserveHandshake("TEST", time.Now(), nil)
	ObserveHandshake("TEST", time.Now(), errors.New("refused"))

	assert.Equal(t, float64(2), testutil.ToFloat64(ok))
	assert.Equal(t, float64(1), testutil.ToFloat64(failed))
	assert.Equal(t, 1, testutil.CollectAndCount(HandshakeDuration))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RouteCounter.WithLabelValues("TEST", "direct").Inc()
	ObserveHandshake("TEST", time.Now(), nil)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `proxy_route_total{route="direct",type="TEST"}`)
	assert.Contains(t, string(body), "proxy_handshake_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")

	resp2, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReportsListenError(t *testing.T) {
	require.Error(t, Serve(context.Background(), "127.0.0.1:-1"))
}
