package goToken

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in [Metrics].
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a token.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected credentials.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the throttle.
	MetricLoginRateLimited
	// MetricTokenIssued counts every successfully signed token, including refresh successors.
	MetricTokenIssued
	MetricIssueFailure
	// MetricValidateSuccess counts signature-and-expiry checks that passed.
	MetricValidateSuccess
	MetricValidateFailure
	// MetricIntrospectActive counts introspections that found the token usable.
	MetricIntrospectActive
	// MetricIntrospectRevoked counts introspections that hit a revocation record.
	MetricIntrospectRevoked
	MetricIntrospectInactive
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes rejected for malformed, forged or expired tokens.
	MetricRefreshFailure
	// MetricTokenReuseDetected counts refreshes of a token that was already rotated or revoked.
	MetricTokenReuseDetected
	MetricLogout
	// MetricRevocationStoreError counts store failures on any request path.
	MetricRevocationStoreError
	// MetricPurgeRun counts purge passes; MetricPurgedRecords counts the records they removed.
	MetricPurgeRun
	MetricPurgedRecords
	// MetricValidateLatency is the only histogram; it times Validate and Introspect.
	MetricValidateLatency
	metricIDCount
)

// LatencyBuckets are the inclusive upper bounds of the latency histogram.
// Observations above the last bound land in an extra overflow bucket, so
// every histogram snapshot has len(LatencyBuckets)+1 entries.
var LatencyBuckets = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencySlots = len(LatencyBuckets) + 1

// counterSlot keeps each counter on its own cache line.
type counterSlot struct {
	atomic.Uint64
	_ [56]byte
}

type latencyHistogram struct {
	slots [latencySlots]atomic.Uint64
	sumNS atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	i := 0
	for i < len(LatencyBuckets) && d > LatencyBuckets[i] {
		i++
	}
	h.slots[i].Add(1)
	h.sumNS.Add(int64(d))
}

func (h *latencyHistogram) snapshot() HistogramSnapshot {
	out := HistogramSnapshot{Buckets: make([]uint64, latencySlots)}
	for i := range h.slots {
		out.Buckets[i] = h.slots[i].Load()
	}
	out.Sum = time.Duration(h.sumNS.Load())
	return out
}

// Metrics is a fixed-size set of lock-free counters. A nil or disabled
// Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counterSlot
	latency       latencyHistogram
}

// HistogramSnapshot holds per-bucket (not cumulative) observation counts
// aligned with [LatencyBuckets] plus the overflow bucket, and the total
// observed duration.
type HistogramSnapshot struct {
	Buckets []uint64
	Sum     time.Duration
}

// Count is the number of observations across all buckets.
func (h HistogramSnapshot) Count() uint64 {
	var n uint64
	for _, v := range h.Buckets {
		n += v
	}
	return n
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

// Empty reports whether the snapshot came from disabled metrics.
func (s MetricsSnapshot) Empty() bool {
	return len(s.Counters) == 0 && len(s.Histograms) == 0
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Unknown ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if !m.Enabled() || id >= metricIDCount || n == 0 {
		return
	}
	m.counters[id].Add(n)
}

// Observe records d. Only MetricValidateLatency has a histogram; other ids
// are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.latency.observe(d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter. The latency histogram is included only
// when latency tracking is on.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID]HistogramSnapshot{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		s.Histograms[MetricValidateLatency] = m.latency.snapshot()
	}
	return s
}
