package book

import (
	"sync/atomic"
	"time"
)

// Quote is the published top-of-book snapshot. Zero prices mean the side has
// no levels yet; callers must treat (0, 0) as "no market", never divide by it.
type Quote struct {
	BidPrice    float64
	BidQuantity float64
	AskPrice    float64
	AskQuantity float64
	UpdatedAt   time.Time
}

// Book pairs the bid and ask ladders for one (symbol, venue). Exactly one
// producer goroutine may call Apply; any goroutine may read Quote, Spread and
// Mid, which always observe the snapshot published by the latest completed
// mutation rather than a ladder mid-shift.
type Book struct {
	symbol string
	venue  string
	bid    *Ladder
	ask    *Ladder
	quote  atomic.Pointer[Quote]
}

func New(symbol, venue string) *Book {
	return &Book{
		symbol: symbol,
		venue:  venue,
		bid:    NewLadder(SideBid),
		ask:    NewLadder(SideAsk),
	}
}

func (b *Book) Symbol() string { return b.symbol }
func (b *Book) Venue() string  { return b.venue }

// Apply mutates one side and republishes the best-quote snapshot. Owner
// goroutine only.
func (b *Book) Apply(side Side, price, quantity float64, ts time.Time) {
	if side == SideBid {
		b.bid.Update(price, quantity, ts)
	} else {
		b.ask.Update(price, quantity, ts)
	}
	q := Quote{UpdatedAt: ts}
	if lvl, ok := b.bid.Best(); ok {
		q.BidPrice = lvl.Price
		q.BidQuantity = lvl.Quantity
	}
	if lvl, ok := b.ask.Best(); ok {
		q.AskPrice = lvl.Price
		q.AskQuantity = lvl.Quantity
	}
	b.quote.Store(&q)
}

// Quote returns the latest published snapshot, zero-valued before the first
// update.
func (b *Book) Quote() Quote {
	if q := b.quote.Load(); q != nil {
		return *q
	}
	return Quote{}
}

// BestBidAsk keeps the (0, 0) sentinel contract for absent sides.
func (b *Book) BestBidAsk() (bid, ask float64) {
	q := b.Quote()
	return q.BidPrice, q.AskPrice
}

func (b *Book) Spread() float64 {
	q := b.Quote()
	if q.BidPrice > 0 && q.AskPrice > 0 {
		return q.AskPrice - q.BidPrice
	}
	return 0
}

func (b *Book) Mid() float64 {
	q := b.Quote()
	if q.BidPrice > 0 && q.AskPrice > 0 {
		return (q.BidPrice + q.AskPrice) / 2
	}
	return 0
}

// BidLevels and AskLevels expose ladder depth for the owner goroutine and
// tests; they are not synchronized with concurrent Apply calls.
func (b *Book) BidLevels() []Level { return b.bid.Levels() }
func (b *Book) AskLevels() []Level { return b.ask.Levels() }
