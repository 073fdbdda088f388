package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	Received     atomic.Uint64
	Reported     atomic.Uint64
	Skipped      atomic.Uint64
	Malformed    atomic.Uint64
	ReportErrors atomic.Uint64
	ReadErrors   atomic.Uint64
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Reported.Store(0)
	m.Skipped.Store(0)
	m.Malformed.Store(0)
	m.ReportErrors.Store(0)
	m.ReadErrors.Store(0)
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Received     uint64
	Reported     uint64
	Skipped      uint64
	Malformed    uint64
	ReportErrors uint64
	ReadErrors   uint64
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Received:     m.Received.Load(),
		Reported:     m.Reported.Load(),
		Skipped:      m.Skipped.Load(),
		Malformed:    m.Malformed.Load(),
		ReportErrors: m.ReportErrors.Load(),
		ReadErrors:   m.ReadErrors.Load(),
	}
}
