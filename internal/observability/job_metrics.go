package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics are in-process counters for one worker. Prometheus carries the
// same signals across processes; these back the worker's own health page.
type JobMetrics struct {
	claimed      atomic.Uint64
	done         atomic.Uint64
	failed       atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64

	durationCount atomic.Uint64
	durationTotal atomic.Int64 // ns
	durationMax   atomic.Int64 // ns

	lastDoneAt atomic.Int64 // unix ns, 0 until the first success
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed() { m.claimed.Add(1) }

func (m *JobMetrics) IncDone() {
	m.done.Add(1)
	m.lastDoneAt.Store(time.Now().UnixNano())
}

func (m *JobMetrics) IncFailed()       { m.failed.Add(1) }
func (m *JobMetrics) IncRetried()      { m.retried.Add(1) }
func (m *JobMetrics) IncDeadLettered() { m.deadLettered.Add(1) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr || m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

// JobMetricsSnapshot is served on the worker's /readyz.
type JobMetricsSnapshot struct {
	Claimed         uint64        `json:"claimed"`
	Done            uint64        `json:"done"`
	Failed          uint64        `json:"failed"`
	Retried         uint64        `json:"retried"`
	DeadLettered    uint64        `json:"deadLettered"`
	DurationCount   uint64        `json:"durationCount"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
	LastDoneAt      *time.Time    `json:"lastDoneAt,omitempty"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	count := m.durationCount.Load()

	s := JobMetricsSnapshot{
		Claimed:       m.claimed.Load(),
		Done:          m.done.Load(),
		Failed:        m.failed.Load(),
		Retried:       m.retried.Load(),
		DeadLettered:  m.deadLettered.Load(),
		DurationCount: count,
		MaxDuration:   time.Duration(m.durationMax.Load()),
	}
	if count > 0 {
		s.AverageDuration = time.Duration(m.durationTotal.Load() / int64(count))
	}
	if ns := m.lastDoneAt.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.LastDoneAt = &t
	}
	return s
}
