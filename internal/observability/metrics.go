package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tphakala/imagefinder/internal/errors"
	"github.com/tphakala/imagefinder/internal/logger"
	"github.com/tphakala/imagefinder/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Resolver *metrics.ResolverMetrics
}

// NewMetrics creates a private registry holding the resolver metrics and
// the Go runtime collector.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	resolverMetrics, err := metrics.NewResolverMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver metrics: %w", err)
	}

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}

	return &Metrics{
		registry: registry,
		Resolver: resolverMetrics,
	}, nil
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ErrorHook returns an errors.ErrorHook counting every built error by
// component and category.
func (m *Metrics) ErrorHook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.Resolver.RecordError(ee.GetComponent(), ee.GetCategory())
	}
}

// HTTPResponseHook returns an httpclient after-response hook counting
// responses by host and status class.
func (m *Metrics) HTTPResponseHook() func(*http.Request, *http.Response, error) {
	return func(req *http.Request, resp *http.Response, err error) {
		status := 0
		if err == nil && resp != nil {
			status = resp.StatusCode
		}
		m.Resolver.RecordHTTPResponse(req.URL.Host, status)
	}
}

// WriteTextfile writes all metrics in the Prometheus text format to path,
// atomically, for collection by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.New(err).
			Component("metrics").
			Category(errors.CategoryFileIO).
			Context("operation", "write-textfile").
			Context("path", path).
			Build()
	}
	GetLogger().Debug("Wrote metrics textfile", logger.String("path", path))
	return nil
}
