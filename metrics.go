package qec

import (
	"sort"
	"sync"
	"time"
)

// Metrics tracks pool and sampling throughput
type Metrics struct {
	mu            sync.RWMutex
	WorkerCount   int
	JobQueueSize  int
	TotalJobTime  time.Duration
	JobCount      int64
	FailedJobs    int64
	ShotsSampled  int64
	ErrorsCounted int64

	AverageJobLatency time.Duration
	P95JobLatency     time.Duration
	P99JobLatency     time.Duration
	JobSuccessRate    float64

	SchedulingFailures int64

	latencyWindow []time.Duration
	windowSize    int
}

func NewMetrics() *Metrics {
	return &Metrics{
		latencyWindow: make([]time.Duration, 0, 1000), // Store last 1000 measurements
		windowSize:    1000,
	}
}

func (m *Metrics) recordJobExecution(startTime time.Time, success bool) {
	duration := time.Since(startTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalJobTime += duration
	m.JobCount++
	if !success {
		m.FailedJobs++
	}
	m.JobSuccessRate = float64(m.JobCount-m.FailedJobs) / float64(m.JobCount)

	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordBatch(shots, errors int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShotsSampled += int64(shots)
	m.ErrorsCounted += int64(errors)
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageJobLatency = m.TotalJobTime / time.Duration(m.JobCount)

	m.latencyWindow = append(m.latencyWindow, duration)
	if len(m.latencyWindow) > m.windowSize {
		m.latencyWindow = m.latencyWindow[1:]
	}

	sorted := append([]time.Duration(nil), m.latencyWindow...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	p95Index := min(int(float64(len(sorted))*0.95), len(sorted)-1)
	p99Index := min(int(float64(len(sorted))*0.99), len(sorted)-1)
	m.P95JobLatency = sorted[p95Index]
	m.P99JobLatency = sorted[p99Index]
}

// ExportMetrics returns a snapshot suitable for structured logging
func (m *Metrics) ExportMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"worker_count":   m.WorkerCount,
		"queue_size":     m.JobQueueSize,
		"jobs":           m.JobCount,
		"failed_jobs":    m.FailedJobs,
		"success_rate":   m.JobSuccessRate,
		"shots":          m.ShotsSampled,
		"errors":         m.ErrorsCounted,
		"avg_latency_ms": m.AverageJobLatency.Milliseconds(),
		"p95_latency_ms": m.P95JobLatency.Milliseconds(),
		"p99_latency_ms": m.P99JobLatency.Milliseconds(),
	}
}
