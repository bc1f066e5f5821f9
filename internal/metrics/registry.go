package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Default is the default metrics instance
	Default *Metrics
	once    sync.Once
)

// InitDefault initializes the default metrics instance.
// This should be called once at application startup.
func InitDefault() *Metrics {
	once.Do(func() {
		Default = NewMetrics(prometheus.DefaultRegisterer)
	})
	return Default
}

// GetDefault returns the default metrics instance, initializing it if needed.
func GetDefault() *Metrics {
	if Default == nil {
		return InitDefault()
	}
	return Default
}

// NewRegistry creates a fresh Prometheus registry with planmerge metrics.
// Tests use this to avoid duplicate registration on the default registerer.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// Reset clears the default metrics instance (useful for testing)
func Reset() {
	Default = nil
	once = sync.Once{}
}
