// Package stats tracks pipeline throughput and latency with lock-free
// counters, cheap enough to call on every update from every feed
// goroutine.
package stats

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

type Tracker struct {
	start time.Time

	updates       atomic.Uint64
	totalLatency  atomic.Uint64
	minLatency    atomic.Uint64
	maxLatency    atomic.Uint64
	opportunities atomic.Uint64
	trades        atomic.Uint64
}

func NewTracker() *Tracker {
	t := &Tracker{start: time.Now()}
	t.minLatency.Store(math.MaxUint64)
	return t
}

// RecordUpdate folds one update's processing latency into the
// aggregates.
func (t *Tracker) RecordUpdate(latency time.Duration) {
	ns := uint64(0)
	if latency > 0 {
		ns = uint64(latency)
	}
	t.updates.Add(1)
	t.totalLatency.Add(ns)
	for {
		cur := t.minLatency.Load()
		if ns >= cur || t.minLatency.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := t.maxLatency.Load()
		if ns <= cur || t.maxLatency.CompareAndSwap(cur, ns) {
			break
		}
	}
}

func (t *Tracker) RecordOpportunity() {
	t.opportunities.Add(1)
}

func (t *Tracker) RecordTrade() {
	t.trades.Add(1)
}

// Summary is a point-in-time view of the tracker.
type Summary struct {
	Runtime       time.Duration
	Updates       uint64
	UpdatesPerSec float64
	AvgLatency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
	Opportunities uint64
	Trades        uint64
	ExecutionRate float64
}

func (t *Tracker) Summary() Summary {
	s := Summary{
		Runtime:       time.Since(t.start),
		Updates:       t.updates.Load(),
		Opportunities: t.opportunities.Load(),
		Trades:        t.trades.Load(),
		MaxLatency:    time.Duration(t.maxLatency.Load()),
	}
	if s.Updates == 0 {
		return s
	}
	if minNS := t.minLatency.Load(); minNS != math.MaxUint64 {
		s.MinLatency = time.Duration(minNS)
	}
	s.AvgLatency = time.Duration(t.totalLatency.Load() / s.Updates)
	if sec := s.Runtime.Seconds(); sec > 0 {
		s.UpdatesPerSec = float64(s.Updates) / sec
	}
	if s.Opportunities > 0 {
		s.ExecutionRate = float64(s.Trades) / float64(s.Opportunities)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"runtime=%.1fs updates=%d rate=%.1f/s latency avg=%s min=%s max=%s opportunities=%d trades=%d execution_rate=%.1f%%",
		s.Runtime.Seconds(), s.Updates, s.UpdatesPerSec,
		s.AvgLatency, s.MinLatency, s.MaxLatency,
		s.Opportunities, s.Trades, s.ExecutionRate*100)
}
