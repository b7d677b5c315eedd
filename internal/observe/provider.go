package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry metrics provider.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "cuemix".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string
}

// Provider is an initialised metrics pipeline.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// InitProvider sets up a [sdkmetric.MeterProvider] with a Prometheus exporter
// on a private registry and registers it as the global provider.
func InitProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "cuemix"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	return &Provider{mp: mp, registry: registry}, nil
}

// Metrics creates the mixer instruments on this provider.
func (p *Provider) Metrics() (*Metrics, error) {
	return NewMetrics(p.mp)
}

// Handler serves the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and closes the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
