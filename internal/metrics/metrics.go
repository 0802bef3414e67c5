// Package metrics records per-scan gauges and counters and writes them in
// the Prometheus text format for a node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "astroscan"

// ScanMetrics holds the metrics for one scan. Each scan gets its own
// registry so a textfile snapshot never mixes runs.
type ScanMetrics struct {
	reg *prometheus.Registry

	Confidence      prometheus.Gauge
	Records         *prometheus.GaugeVec
	CollectorCalls  *prometheus.CounterVec
	CollectorErrors *prometheus.CounterVec
	Anomalies       *prometheus.GaugeVec
	Correlations    prometheus.Gauge
	AlertsActive    prometheus.Gauge
	AlertsArchived  prometheus.Gauge
	AlertsCreated   prometheus.Counter
	AlertsEvicted   prometheus.Counter
	Narrative       *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	LastScan        prometheus.Gauge
}

// New registers a fresh set of scan metrics.
func New() *ScanMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &ScanMetrics{
		reg: reg,
		Confidence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_confidence",
			Help:      "Overall confidence (0-100) from the last assessment",
		}),
		Records: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records collected in the last scan",
		}, []string{"kind"}),
		CollectorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_calls_total",
			Help:      "Outbound calls made per collector",
		}, []string{"source"}),
		CollectorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_errors_total",
			Help:      "Collectors that failed outright",
		}, []string{"source"}),
		Anomalies: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies",
			Help:      "Anomalies detected in the last scan",
		}, []string{"severity"}),
		Correlations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlations",
			Help:      "Location correlations found in the last scan",
		}),
		AlertsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Active alerts after curation",
		}),
		AlertsArchived: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_archived",
			Help:      "Archived alerts after curation",
		}),
		AlertsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts promoted in the last scan",
		}),
		AlertsEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_evicted_total",
			Help:      "Archived alerts evicted to the ledger in the last scan",
		}),
		Narrative: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessments by source (narrative or fallback)",
		}, []string{"source"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"stage"}),
		LastScan: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time the last scan finished",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *ScanMetrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveStage records how long a stage took since start.
func (m *ScanMetrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the metrics to path atomically.
func (m *ScanMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
