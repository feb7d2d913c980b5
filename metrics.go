package campusauth

import "sync/atomic"

// MetricID indexes one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the attempt limiter.
	MetricLoginRateLimited
	// MetricRegistration counts accepted registrations (create or re-register).
	MetricRegistration
	// MetricOTPIssued counts passcodes generated and dispatched.
	MetricOTPIssued
	// MetricOTPRateLimited counts issues refused inside the resend window.
	MetricOTPRateLimited
	// MetricOTPVerifySuccess counts consumed passcodes.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts failed verification attempts.
	MetricOTPVerifyFailure
	// MetricRefreshSuccess counts token pairs re-minted from a refresh token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricFederatedLogin counts completed federated logins.
	MetricFederatedLogin
	// MetricFederatedRejected counts federated assertions that failed soft.
	MetricFederatedRejected
	// MetricAuthenticateFailure counts gate rejections of access credentials.
	MetricAuthenticateFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of in-process atomic counters. A nil or disabled
// Metrics is a no-op on every method.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates the counter set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
