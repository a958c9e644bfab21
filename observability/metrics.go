package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	bondingMetricsOnce sync.Once
	bondingRegistry    *BondingMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "strata",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// BondingMetrics tracks engine operations.
type BondingMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	volume     *prometheus.CounterVec
	royalties  *prometheus.CounterVec
}

// Bonding returns the singleton registry for bonding engine operations.
func Bonding() *BondingMetrics {
	bondingMetricsOnce.Do(func() {
		bondingRegistry = &BondingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "bonding",
				Name:      "operations_total",
				Help:      "Engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "strata",
				Subsystem: "bonding",
				Name:      "operation_duration_seconds",
				Help:      "Latency of engine operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "bonding",
				Name:      "errors_total",
				Help:      "Engine errors segmented by operation and error code.",
			}, []string{"operation", "code"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "bonding",
				Name:      "base_volume_total",
				Help:      "Base units moved through the curve, by side.",
			}, []string{"side"}),
			royalties: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "strata",
				Subsystem: "bonding",
				Name:      "royalties_total",
				Help:      "Royalties paid, by side and asset (base or target).",
			}, []string{"side", "asset"}),
		}
		prometheus.MustRegister(
			bondingRegistry.operations,
			bondingRegistry.latency,
			bondingRegistry.errors,
			bondingRegistry.volume,
			bondingRegistry.royalties,
		)
	})
	return bondingRegistry
}

// Observe records one engine operation. code is empty on success.
func (m *BondingMetrics) Observe(operation string, duration time.Duration, code string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if code != "" {
		outcome = "error"
		m.errors.WithLabelValues(operation, code).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTrade adds a committed trade to the volume and royalty counters.
func (m *BondingMetrics) RecordTrade(side string, price, baseRoyalty, targetRoyalty uint64) {
	if m == nil {
		return
	}
	m.volume.WithLabelValues(side).Add(float64(price))
	if baseRoyalty > 0 {
		m.royalties.WithLabelValues(side, "base").Add(float64(baseRoyalty))
	}
	if targetRoyalty > 0 {
		m.royalties.WithLabelValues(side, "target").Add(float64(targetRoyalty))
	}
}
