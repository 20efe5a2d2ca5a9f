// Package usage tracks per-surface request counts and phase durations for
// the metrics endpoint. The recorder is injected into the orchestrator and
// handlers rather than living in a process-global, so tests and callers
// control its lifecycle.
package usage

import (
	"sync"
	"time"
)

// Recorder receives usage events from the request paths.
type Recorder interface {
	// RecordRequest counts one request against a named surface
	// ("funnel", "deal_sources", "reports").
	RecordRequest(surface string)
	// RecordPhase records one timed orchestration phase.
	RecordPhase(phase string, elapsed time.Duration)
	// RecordDegraded counts a degraded provider outcome.
	RecordDegraded(provider string)
}

// Snapshot is a point-in-time view of recorded usage.
type Snapshot struct {
	Requests       map[string]int           `json:"requests"`
	DegradedCounts map[string]int           `json:"degradedCounts"`
	PhaseTotals    map[string]time.Duration `json:"phaseTotals"`
	PhaseCounts    map[string]int           `json:"phaseCounts"`
	StartedAt      time.Time                `json:"startedAt"`
	TakenAt        time.Time                `json:"takenAt"`
}

// Memory is an in-memory Recorder. The zero value is not usable; construct
// with NewMemory.
type Memory struct {
	mu        sync.Mutex
	requests  map[string]int
	degraded  map[string]int
	phaseSum  map[string]time.Duration
	phaseN    map[string]int
	startedAt time.Time
	now       func() time.Time
}

// NewMemory returns an empty in-memory recorder.
func NewMemory() *Memory {
	m := &Memory{now: time.Now}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.requests = make(map[string]int)
	m.degraded = make(map[string]int)
	m.phaseSum = make(map[string]time.Duration)
	m.phaseN = make(map[string]int)
	m.startedAt = m.now()
}

// Reset clears all counters and restarts the window.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *Memory) RecordRequest(surface string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[surface]++
}

func (m *Memory) RecordPhase(phase string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phaseSum[phase] += elapsed
	m.phaseN[phase]++
}

func (m *Memory) RecordDegraded(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded[provider]++
}

// Snapshot copies the current counters.
func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:       make(map[string]int, len(m.requests)),
		DegradedCounts: make(map[string]int, len(m.degraded)),
		PhaseTotals:    make(map[string]time.Duration, len(m.phaseSum)),
		PhaseCounts:    make(map[string]int, len(m.phaseN)),
		StartedAt:      m.startedAt,
		TakenAt:        m.now(),
	}
	for k, v := range m.requests {
		snap.Requests[k] = v
	}
	for k, v := range m.degraded {
		snap.DegradedCounts[k] = v
	}
	for k, v := range m.phaseSum {
		snap.PhaseTotals[k] = v
	}
	for k, v := range m.phaseN {
		snap.PhaseCounts[k] = v
	}
	return snap
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) RecordRequest(string)              {}
func (Nop) RecordPhase(string, time.Duration) {}
func (Nop) RecordDegraded(string)             {}
