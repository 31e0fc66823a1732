package book

import "time"

// MaxLevels bounds every ladder to the top price tiers worth tracking.
const MaxLevels = 10

type Side uint8

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}

// Level is one price tier of a ladder.
type Level struct {
	Price     float64
	Quantity  float64
	UpdatedAt time.Time
}

// Ladder holds up to MaxLevels levels for one side of a book, ordered
// best-first: descending prices for bids, ascending for asks. A ladder is
// owned by a single writer; it is not safe for concurrent use.
type Ladder struct {
	levels [MaxLevels]Level
	count  int
	side   Side
}

func NewLadder(side Side) *Ladder {
	return &Ladder{side: side}
}

// Update applies one (price, quantity) tier. An exact price match updates the
// level in place. A price better than an existing level is inserted there,
// shifting worse levels down and dropping the worst when the ladder is full.
// A price worse than every level is appended only while spare capacity
// remains; otherwise it is discarded.
func (l *Ladder) Update(price, quantity float64, ts time.Time) {
	for i := 0; i < l.count; i++ {
		if l.levels[i].Price == price {
			l.levels[i].Quantity = quantity
			l.levels[i].UpdatedAt = ts
			return
		}
		if l.better(price, l.levels[i].Price) {
			for j := min(l.count, MaxLevels-1); j > i; j-- {
				l.levels[j] = l.levels[j-1]
			}
			l.levels[i] = Level{Price: price, Quantity: quantity, UpdatedAt: ts}
			if l.count < MaxLevels {
				l.count++
			}
			return
		}
	}
	if l.count < MaxLevels {
		l.levels[l.count] = Level{Price: price, Quantity: quantity, UpdatedAt: ts}
		l.count++
	}
}

func (l *Ladder) better(incoming, existing float64) bool {
	if l.side == SideBid {
		return existing < incoming
	}
	return existing > incoming
}

func (l *Ladder) Len() int {
	return l.count
}

// Best returns the top level, or false when the ladder is empty.
func (l *Ladder) Best() (Level, bool) {
	if l.count == 0 {
		return Level{}, false
	}
	return l.levels[0], true
}

// Levels copies the populated tiers in ladder order.
func (l *Ladder) Levels() []Level {
	out := make([]Level, l.count)
	copy(out, l.levels[:l.count])
	return out
}
