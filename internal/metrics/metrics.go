package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the proxy collectors plus the Go runtime and process ones.
var Registry = prometheus.NewRegistry()

var (
	// RouteCounter counts routing decisions made by the non-proxy hosts predicate.
	RouteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_route_total",
		Help: "Routing decisions per proxy type, route is proxy or direct",
	}, []string{"type", "route"})

	// HandshakeCounter counts proxy dials by outcome.
	HandshakeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_handshake_total",
		Help: "Proxy handshakes per proxy type, result is ok or error",
	}, []string{"type", "result"})

	HandshakeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_handshake_duration_seconds",
		Help:    "Time spent dialing and handshaking with the proxy",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	Registry.MustRegister(
		RouteCounter,
		HandshakeCounter,
		HandshakeDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveHandshake records the outcome of one proxy dial started at start.
func ObserveHandshake(proxyType string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	HandshakeCounter.WithLabelValues(proxyType, result).Inc()
	HandshakeDuration.WithLabelValues(proxyType).Observe(time.Since(start).Seconds())
}

// Handler serves Registry under /metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))
	return mux
}

// Serve exposes Handler on addr until ctx is done, then shuts the listener
// down within five seconds. A clean shutdown returns nil.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
