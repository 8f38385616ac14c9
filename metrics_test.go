package hotwatch

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuakami/hotwatch/vfs/memfs"
)

// TestMetricsRecordScans 扫描次数、事件、故障和已跟踪文件数被记录
func TestMetricsRecordScans(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	m := memfs.New()
	m.WriteFile("/w/A.class", nil, t0)
	m.WriteFile("/w/B.class", nil, t0)
	d, err := NewDetector(DetectorConfig{
		Root:      "/w",
		Extension: "class",
		Name:      "classes",
		FS:        m,
		Errors:    &errorLog{},
		Metrics:   metrics,
	})
	require.NoError(t, err)
	d.OnAdded(func(FileEvent) error { return assert.AnError })

	d.Scan()
	require.NoError(t, m.Touch("/w/A.class", t0.Add(time.Second)))
	d.Scan()

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.scans.WithLabelValues("classes")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.events.WithLabelValues("classes", "added")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.events.WithLabelValues("classes", "modified")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.failures.WithLabelValues(OpListener)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.tracked.WithLabelValues("classes")))

	count, err := testutil.GatherAndCount(reg, "hotwatch_scan_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestMetricsEntryEvents 条目事件单独计数
func TestMetricsEntryEvents(t *testing.T) {
	metrics := NewMetrics(nil)
	m := memfs.New()
	m.WriteArchive("/w/lib.jar", t0, memfs.Entry{Name: "X.class", Modified: t0})
	a, err := NewArchiveDetector(ArchiveConfig{Root: "/w", Name: "jars", FS: m, Metrics: metrics})
	require.NoError(t, err)

	a.Scan()
	m.WriteArchive("/w/lib.jar", t1, memfs.Entry{Name: "X.class", Modified: t1})
	a.Scan()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.entryEvents.WithLabelValues("jars")))
}

// TestNilMetrics nil *Metrics 上的记录是空操作
func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.scanned("x", time.Second, 1)
		m.event("x", Added)
		m.entryEvent("x")
		m.failure(OpStat)
	})
}
