package hotwatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 汇总检测器和调度器的 Prometheus 指标
//
// nil *Metrics 是合法的，所有记录方法在 nil 上都是空操作
type Metrics struct {
	scans       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	events      *prometheus.CounterVec
	entryEvents *prometheus.CounterVec
	failures    *prometheus.CounterVec
	tracked     *prometheus.GaugeVec
}

// NewMetrics 创建指标并注册到 reg，reg 为 nil 时不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotwatch_scans_total",
				Help: "Total number of completed scan passes",
			},
			[]string{"detector"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hotwatch_scan_duration_seconds",
				Help:    "Scan pass duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"detector"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotwatch_events_total",
				Help: "Total number of file change events dispatched",
			},
			[]string{"detector", "kind"},
		),
		entryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotwatch_entry_events_total",
				Help: "Total number of archive entry change events dispatched",
			},
			[]string{"detector"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotwatch_failures_total",
				Help: "Total number of local failures reported",
			},
			[]string{"op"},
		),
		tracked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hotwatch_tracked_files",
				Help: "Number of files known after the last scan",
			},
			[]string{"detector"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.scans, m.duration, m.events, m.entryEvents, m.failures, m.tracked)
	}
	return m
}

func (m *Metrics) scanned(detector string, took time.Duration, tracked int) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(detector).Inc()
	m.duration.WithLabelValues(detector).Observe(took.Seconds())
	m.tracked.WithLabelValues(detector).Set(float64(tracked))
}

func (m *Metrics) event(detector string, kind Kind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(detector, kind.String()).Inc()
}

func (m *Metrics) entryEvent(detector string) {
	if m == nil {
		return
	}
	m.entryEvents.WithLabelValues(detector).Inc()
}

func (m *Metrics) failure(op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op).Inc()
}
