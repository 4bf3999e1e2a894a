package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks pipeline call metrics
type Metrics struct {
	providerCalls   int64
	providerErrors  int64
	providerLatency int64 // Total latency in nanoseconds
	reviewerCalls   int64
	wavesCompleted  int64
	splitsAccepted  int64
	splitsDropped   int64
}

var globalMetrics = &Metrics{}

// Get returns the current metrics snapshot
func Get() Metrics {
	return Metrics{
		providerCalls:   atomic.LoadInt64(&globalMetrics.providerCalls),
		providerErrors:  atomic.LoadInt64(&globalMetrics.providerErrors),
		providerLatency: atomic.LoadInt64(&globalMetrics.providerLatency),
		reviewerCalls:   atomic.LoadInt64(&globalMetrics.reviewerCalls),
		wavesCompleted:  atomic.LoadInt64(&globalMetrics.wavesCompleted),
		splitsAccepted:  atomic.LoadInt64(&globalMetrics.splitsAccepted),
		splitsDropped:   atomic.LoadInt64(&globalMetrics.splitsDropped),
	}
}

// Reset resets all metrics (useful for testing)
func Reset() {
	atomic.StoreInt64(&globalMetrics.providerCalls, 0)
	atomic.StoreInt64(&globalMetrics.providerErrors, 0)
	atomic.StoreInt64(&globalMetrics.providerLatency, 0)
	atomic.StoreInt64(&globalMetrics.reviewerCalls, 0)
	atomic.StoreInt64(&globalMetrics.wavesCompleted, 0)
	atomic.StoreInt64(&globalMetrics.splitsAccepted, 0)
	atomic.StoreInt64(&globalMetrics.splitsDropped, 0)
}

// RecordProviderCall records a model-provider call
func RecordProviderCall(duration time.Duration, err error) {
	atomic.AddInt64(&globalMetrics.providerCalls, 1)
	atomic.AddInt64(&globalMetrics.providerLatency, duration.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&globalMetrics.providerErrors, 1)
	}
}

// RecordReviewerCall records a content-reviewer call
func RecordReviewerCall() {
	atomic.AddInt64(&globalMetrics.reviewerCalls, 1)
}

// RecordWaveCompleted records a finished generation wave
func RecordWaveCompleted() {
	atomic.AddInt64(&globalMetrics.wavesCompleted, 1)
}

// RecordSplitAccepted records a reviewer split that was inserted
func RecordSplitAccepted() {
	atomic.AddInt64(&globalMetrics.splitsAccepted, 1)
}

// RecordSplitDropped records a reviewer split dropped at the slide ceiling
func RecordSplitDropped() {
	atomic.AddInt64(&globalMetrics.splitsDropped, 1)
}

// AverageProviderLatency returns the average latency in milliseconds
func (m Metrics) AverageProviderLatency() float64 {
	if m.providerCalls == 0 {
		return 0
	}
	avgNs := float64(m.providerLatency) / float64(m.providerCalls)
	return avgNs / 1e6
}

// ProviderErrorRate returns the error rate as a percentage
func (m Metrics) ProviderErrorRate() float64 {
	if m.providerCalls == 0 {
		return 0
	}
	return float64(m.providerErrors) / float64(m.providerCalls) * 100
}

// ProviderCalls returns the total provider call count
func (m Metrics) ProviderCalls() int64 { return m.providerCalls }

// WavesCompleted returns the completed wave count
func (m Metrics) WavesCompleted() int64 { return m.wavesCompleted }

// Snapshot is the serializable shape served by the metrics endpoint.
type Snapshot struct {
	ProviderCalls        int64   `json:"provider_calls"`
	ProviderErrors       int64   `json:"provider_errors"`
	ProviderErrorRate    float64 `json:"provider_error_rate"`
	ProviderAvgLatencyMS float64 `json:"provider_avg_latency_ms"`
	ReviewerCalls        int64   `json:"reviewer_calls"`
	WavesCompleted       int64   `json:"waves_completed"`
	SplitsAccepted       int64   `json:"splits_accepted"`
	SplitsDropped        int64   `json:"splits_dropped"`
}

// Snapshot renders the metrics for serialization
func (m Metrics) Snapshot() Snapshot {
	return Snapshot{
		ProviderCalls:        m.providerCalls,
		ProviderErrors:       m.providerErrors,
		ProviderErrorRate:    m.ProviderErrorRate(),
		ProviderAvgLatencyMS: m.AverageProviderLatency(),
		ReviewerCalls:        m.reviewerCalls,
		WavesCompleted:       m.wavesCompleted,
		SplitsAccepted:       m.splitsAccepted,
		SplitsDropped:        m.splitsDropped,
	}
}
