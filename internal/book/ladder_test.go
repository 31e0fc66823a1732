package book

import (
	"testing"
	"time"
)

func TestLadderBidOrdering(t *testing.T) {
	l := NewLadder(SideBid)
	now := time.Now()
	prices := []float64{50000, 50002, 49998, 50001, 49999, 50003}
	for _, p := range prices {
		l.Update(p, 1.0, now)
	}
	if l.Len() != len(prices) {
		t.Fatalf("expected %d levels, got %d", len(prices), l.Len())
	}
	levels := l.Levels()
	for i := 1; i < len(levels); i++ {
		if levels[i].Price >= levels[i-1].Price {
			t.Fatalf("bid ladder not strictly descending at %d: %.2f >= %.2f", i, levels[i].Price, levels[i-1].Price)
		}
	}
	if best, _ := l.Best(); best.Price != 50003 {
		t.Fatalf("expected best bid 50003, got %.2f", best.Price)
	}
}

func TestLadderAskOrdering(t *testing.T) {
	l := NewLadder(SideAsk)
	now := time.Now()
	for _, p := range []float64{50010, 50005, 50020, 50001, 50015} {
		l.Update(p, 2.0, now)
	}
	levels := l.Levels()
	for i := 1; i < len(levels); i++ {
		if levels[i].Price <= levels[i-1].Price {
			t.Fatalf("ask ladder not strictly ascending at %d: %.2f <= %.2f", i, levels[i].Price, levels[i-1].Price)
		}
	}
	if best, _ := l.Best(); best.Price != 50001 {
		t.Fatalf("expected best ask 50001, got %.2f", best.Price)
	}
}

func TestLadderSamePriceUpdatesInPlace(t *testing.T) {
	l := NewLadder(SideBid)
	l.Update(50000, 1.0, time.Now())
	l.Update(49999, 2.0, time.Now())
	l.Update(50000, 3.5, time.Now())
	if l.Len() != 2 {
		t.Fatalf("expected 2 levels after in-place update, got %d", l.Len())
	}
	best, ok := l.Best()
	if !ok {
		t.Fatalf("expected a best level")
	}
	if best.Price != 50000 || best.Quantity != 3.5 {
		t.Fatalf("expected 50000 @ 3.5, got %.2f @ %.2f", best.Price, best.Quantity)
	}
}

func TestLadderEvictsWorstWhenFull(t *testing.T) {
	l := NewLadder(SideBid)
	now := time.Now()
	for i := 0; i < MaxLevels; i++ {
		l.Update(50000+float64(i), 1.0, now)
	}
	if l.Len() != MaxLevels {
		t.Fatalf("expected %d levels, got %d", MaxLevels, l.Len())
	}
	// A better price displaces the worst level.
	l.Update(50100, 1.0, now)
	if l.Len() != MaxLevels {
		t.Fatalf("expected capacity to hold at %d, got %d", MaxLevels, l.Len())
	}
	levels := l.Levels()
	if levels[0].Price != 50100 {
		t.Fatalf("expected new best 50100, got %.2f", levels[0].Price)
	}
	if worst := levels[MaxLevels-1].Price; worst != 50001 {
		t.Fatalf("expected prior worst 50000 evicted, worst now %.2f", worst)
	}
}

func TestLadderDiscardsUncompetitivePriceWhenFull(t *testing.T) {
	l := NewLadder(SideBid)
	now := time.Now()
	for i := 0; i < MaxLevels; i++ {
		l.Update(50000+float64(i), 1.0, now)
	}
	before := l.Levels()
	l.Update(49000, 9.0, now)
	after := l.Levels()
	if len(after) != MaxLevels {
		t.Fatalf("expected %d levels, got %d", MaxLevels, len(after))
	}
	for i := range before {
		if before[i].Price != after[i].Price || before[i].Quantity != after[i].Quantity {
			t.Fatalf("expected ladder unchanged at %d: %.2f vs %.2f", i, before[i].Price, after[i].Price)
		}
	}
}

func TestLadderAppendsWorsePriceWithCapacity(t *testing.T) {
	l := NewLadder(SideAsk)
	now := time.Now()
	l.Update(50000, 1.0, now)
	l.Update(50005, 1.0, now)
	if l.Len() != 2 {
		t.Fatalf("expected 2 levels, got %d", l.Len())
	}
	levels := l.Levels()
	if levels[1].Price != 50005 {
		t.Fatalf("expected worse ask appended at tail, got %.2f", levels[1].Price)
	}
}
