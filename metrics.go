package eduAuth

import (
	"sync/atomic"
	"time"
)

// MetricID indexes the engine's fixed counter set.
type MetricID uint16

const (
	MetricSignupStarted MetricID = iota
	MetricSignupConflict
	MetricSignupVerified
	MetricSignupOTPInvalid
	MetricOTPResent
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginUnverified
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	MetricRefreshRotationLost
	MetricLogout
	MetricTokenBlacklisted
	MetricAuthenticateSuccess
	MetricAuthenticateFailure
	MetricPasswordResetRequest
	MetricPasswordResetVerified
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordUpgraded
	MetricEmailSendFailure
	MetricAdminSeeded
	// MetricAuthenticateLatency is the only histogram and must stay last
	// before metricIDCount.
	MetricAuthenticateLatency
	metricIDCount
)

// LatencyBounds are the upper bounds of the authenticate latency histogram.
// Observations above the last bound land in a final overflow bucket.
var LatencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(LatencyBounds) + 1

// counter is padded to a cache line so hot counters do not contend.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a lock-free counter set plus one latency histogram. A nil or
// disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	latency       [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy. Histogram buckets are not
// cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

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

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricAuthenticateLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d. MetricAuthenticateLatency is the only histogram; other
// ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthenticateLatency {
		return
	}
	m.latency[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricAuthenticateLatency {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < MetricAuthenticateLatency; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
	}
	return s
}

// latencyBucket matches on whole milliseconds, so 5.9ms counts as 5ms.
func latencyBucket(d time.Duration) int {
	d = d.Truncate(time.Millisecond)
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
