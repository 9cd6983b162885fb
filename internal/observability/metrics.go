package observability

import (
	"sync/atomic"
)

// MetricsCollector provides hooks for counting bridge activity.
type MetricsCollector interface {
	IncCycles()
	IncCycleFailed()
	IncMessagesSeen()
	IncForwarded()
	IncForwardFailed()
	IncSkipped()
	IncDedupResets()
}

// InMemoryMetrics is the default collector, read by the status API.
type InMemoryMetrics struct {
	Cycles        atomic.Int64
	CycleFailed   atomic.Int64
	MessagesSeen  atomic.Int64
	Forwarded     atomic.Int64
	ForwardFailed atomic.Int64
	Skipped       atomic.Int64
	DedupResets   atomic.Int64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) IncCycles()        { m.Cycles.Add(1) }
func (m *InMemoryMetrics) IncCycleFailed()   { m.CycleFailed.Add(1) }
func (m *InMemoryMetrics) IncMessagesSeen()  { m.MessagesSeen.Add(1) }
func (m *InMemoryMetrics) IncForwarded()     { m.Forwarded.Add(1) }
func (m *InMemoryMetrics) IncForwardFailed() { m.ForwardFailed.Add(1) }
func (m *InMemoryMetrics) IncSkipped()       { m.Skipped.Add(1) }
func (m *InMemoryMetrics) IncDedupResets()   { m.DedupResets.Add(1) }

// Snapshot is a JSON-friendly copy of the counters.
type Snapshot struct {
	Cycles        int64 `json:"cycles"`
	CycleFailed   int64 `json:"cycle_failed"`
	MessagesSeen  int64 `json:"messages_seen"`
	Forwarded     int64 `json:"forwarded"`
	ForwardFailed int64 `json:"forward_failed"`
	Skipped       int64 `json:"skipped"`
	DedupResets   int64 `json:"dedup_resets"`
}

func (m *InMemoryMetrics) Snapshot() Snapshot {
	return Snapshot{
		Cycles:        m.Cycles.Load(),
		CycleFailed:   m.CycleFailed.Load(),
		MessagesSeen:  m.MessagesSeen.Load(),
		Forwarded:     m.Forwarded.Load(),
		ForwardFailed: m.ForwardFailed.Load(),
		Skipped:       m.Skipped.Load(),
		DedupResets:   m.DedupResets.Load(),
	}
}
