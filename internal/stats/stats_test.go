package stats

import (
	"sync"
	"testing"
	"time"
)

func TestTrackerAggregatesLatency(t *testing.T) {
	tr := NewTracker()
	tr.RecordUpdate(10 * time.Microsecond)
	tr.RecordUpdate(30 * time.Microsecond)
	tr.RecordUpdate(20 * time.Microsecond)

	s := tr.Summary()
	if s.Updates != 3 {
		t.Fatalf("expected 3 updates, got %d", s.Updates)
	}
	if s.MinLatency != 10*time.Microsecond {
		t.Fatalf("expected min 10us, got %s", s.MinLatency)
	}
	if s.MaxLatency != 30*time.Microsecond {
		t.Fatalf("expected max 30us, got %s", s.MaxLatency)
	}
	if s.AvgLatency != 20*time.Microsecond {
		t.Fatalf("expected avg 20us, got %s", s.AvgLatency)
	}
}

func TestTrackerEmptySummary(t *testing.T) {
	tr := NewTracker()
	s := tr.Summary()
	if s.Updates != 0 || s.AvgLatency != 0 || s.MinLatency != 0 || s.MaxLatency != 0 {
		t.Fatalf("expected zeroed summary, got %+v", s)
	}
	if s.UpdatesPerSec != 0 || s.ExecutionRate != 0 {
		t.Fatalf("expected zero rates, got %+v", s)
	}
}

func TestTrackerExecutionRate(t *testing.T) {
	tr := NewTracker()
	tr.RecordUpdate(time.Microsecond)
	for i := 0; i < 4; i++ {
		tr.RecordOpportunity()
	}
	tr.RecordTrade()

	s := tr.Summary()
	if s.Opportunities != 4 || s.Trades != 1 {
		t.Fatalf("expected 4 opportunities and 1 trade, got %d and %d", s.Opportunities, s.Trades)
	}
	if s.ExecutionRate != 0.25 {
		t.Fatalf("expected execution rate 0.25, got %f", s.ExecutionRate)
	}
}

func TestTrackerNegativeLatencyClamped(t *testing.T) {
	tr := NewTracker()
	tr.RecordUpdate(-5 * time.Microsecond)
	s := tr.Summary()
	if s.MinLatency != 0 || s.MaxLatency != 0 {
		t.Fatalf("expected clamped latency, got min=%s max=%s", s.MinLatency, s.MaxLatency)
	}
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tr := NewTracker()
	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tr.RecordUpdate(time.Duration(w*perWorker+i+1) * time.Nanosecond)
			}
		}(w)
	}
	wg.Wait()

	s := tr.Summary()
	if s.Updates != workers*perWorker {
		t.Fatalf("expected %d updates, got %d", workers*perWorker, s.Updates)
	}
	if s.MinLatency != time.Nanosecond {
		t.Fatalf("expected min 1ns, got %s", s.MinLatency)
	}
	if s.MaxLatency != time.Duration(workers*perWorker)*time.Nanosecond {
		t.Fatalf("expected max %dns, got %s", workers*perWorker, s.MaxLatency)
	}
}
