package metrics

import (
	"time"

	"github.com/saiset-co/sai-social-bot/types"
)

// NoopMetrics satisfies the manager interface when metrics are disabled.
type NoopMetrics struct{}

func NewNoopMetrics() types.MetricsManager {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Start() error    { return nil }
func (n *NoopMetrics) Stop() error     { return nil }
func (n *NoopMetrics) IsRunning() bool { return false }

func (n *NoopMetrics) Counter(name string, labels map[string]string) types.Counter {
	return noopCounter{}
}

func (n *NoopMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	return noopGauge{}
}

func (n *NoopMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	return noopHistogram{}
}

type noopCounter struct{}

func (noopCounter) Inc()              {}
func (noopCounter) Add(value float64) {}

type noopGauge struct{}

func (noopGauge) Set(value float64) {}
func (noopGauge) Inc()              {}
func (noopGauge) Dec()              {}

type noopHistogram struct{}

func (noopHistogram) Observe(value float64)           {}
func (noopHistogram) ObserveDuration(start time.Time) {}
