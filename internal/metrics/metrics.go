// Package metrics provides lock-free counters and a request latency
// histogram for authguard observability.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The write path is allocation-free. Export lives in
// metrics/export/ and reads Snapshot values; this package performs no I/O
// and imports no sibling packages.
package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a single counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricMFARequired
	MetricMFASuccess
	MetricMFAFailure
	MetricMFAExpired
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshCoalesced
	MetricRequestRetried
	MetricAuthFailure
	MetricCSRFIssued
	MetricCSRFRejected
	MetricLogout
	MetricSessionRestored
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [histBucketCount]uint64
}

// Config controls which metric families are recorded.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds every counter and histogram for one client instance.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       histogram
}

// Snapshot is a point-in-time copy of all metric values.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments the counter. No-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a request round-trip duration in the latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
