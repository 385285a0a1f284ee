package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var log = commonlog.GetLogger("drl.observability")

// NewPrometheus creates a MeterProvider whose instruments are exported
// through an [http.Handler] serving the /metrics scrape endpoint. Each call
// uses its own Prometheus registry.
func NewPrometheus() (*sdkmetric.MeterProvider, http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return provider, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// MetricsServer serves /metrics over HTTP.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer starts an HTTP server at addr exposing handler on /metrics.
func NewMetricsServer(addr string, handler http.Handler) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Warningf("metrics server stopped: %s", serveErr)
		}
	}()

	return &MetricsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Close gracefully shuts down the metrics server.
func (m *MetricsServer) Close() error {
	err := m.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}
