// Package runstate holds the cross-goroutine flags and counters that the
// producer, dispatcher and run controller all read and write: the ACTIVE/
// RUNNING gates and the RunStats tuple.
package runstate

import (
	"sync"
	"sync/atomic"
)

// Flags are the two gates every loop in the acquisition pipeline polls.
// ACTIVE false drains every loop; RUNNING false idles the producer without
// tearing anything down (pause).
type Flags struct {
	active  atomic.Bool
	running atomic.Bool
}

// NewFlags returns Flags with ACTIVE set and RUNNING clear, matching the
// Run Controller's INIT state.
func NewFlags() *Flags {
	f := &Flags{}
	f.active.Store(true)
	return f
}

func (f *Flags) Active() bool  { return f.active.Load() }
func (f *Flags) Running() bool { return f.running.Load() }

func (f *Flags) SetActive(v bool)  { f.active.Store(v) }
func (f *Flags) SetRunning(v bool) { f.running.Store(v) }

// RunStats is the producer-authored, widely-read tuple of run progress.
type RunStats struct {
	mu sync.RWMutex

	nTrig    int64
	tTrig    float64
	tLife    float64
	readRate float64
	lifeFrac float64
}

// Snapshot is an immutable copy of RunStats for a single consistent read.
type Snapshot struct {
	NTrig    int64
	TTrig    float64
	TLife    float64
	ReadRate float64
	LifeFrac float64
}

// IncrementTrigger records one more trigger at the given block trigger time
// and accumulates the live time consumed acquiring it.
func (s *RunStats) IncrementTrigger(triggerTime, liveTimeDelta float64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nTrig++
	s.tTrig = triggerTime
	s.tLife += liveTimeDelta
	return s.nTrig
}

// UpdateRates sets readRate and lifeFrac, recomputed by the producer every
// ten acquisitions.
func (s *RunStats) UpdateRates(readRate, lifeFrac float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readRate = readRate
	s.lifeFrac = lifeFrac
}

// Get returns a consistent snapshot of all fields.
func (s *RunStats) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		NTrig:    s.nTrig,
		TTrig:    s.tTrig,
		TLife:    s.tLife,
		ReadRate: s.readRate,
		LifeFrac: s.lifeFrac,
	}
}
