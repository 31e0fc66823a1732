// Package detect maintains the per-symbol, per-venue book registry and scans
// venue pairs for crossed markets.
package detect

import (
	"sync"
	"time"

	"arb-sim-bot/internal/book"
)

// DefaultMinProfitBPS is the coarse global floor applied before any risk
// assessment happens. It is independent from the risk engine's own
// post-fee profit floor.
const DefaultMinProfitBPS = 5.0

// Opportunity is one crossed-market observation: buying the ask on one venue
// and selling into the bid on another.
type Opportunity struct {
	Symbol     string
	BuyVenue   string
	SellVenue  string
	BuyPrice   float64
	SellPrice  float64
	ProfitBPS  float64
	DetectedAt time.Time
	Latency    time.Duration
}

// ProfitBPS converts a buy/sell price pair into gross basis points. It
// returns 0 for a non-positive buy price rather than dividing by it.
func ProfitBPS(buyPrice, sellPrice float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	return (sellPrice - buyPrice) / buyPrice * 10000.0
}

type Detector struct {
	mu           sync.RWMutex
	books        map[string]map[string]*book.Book
	venueOrder   map[string][]string
	minProfitBPS float64
}

func New() *Detector {
	return &Detector{
		books:        make(map[string]map[string]*book.Book),
		venueOrder:   make(map[string][]string),
		minProfitBPS: DefaultMinProfitBPS,
	}
}

// Register creates the order book for (symbol, venue) and remembers the
// registration order, which fixes pair iteration order during scans.
// Registering the same pair twice returns the existing book.
func (d *Detector) Register(symbol, venue string) *book.Book {
	d.mu.Lock()
	defer d.mu.Unlock()
	byVenue, ok := d.books[symbol]
	if !ok {
		byVenue = make(map[string]*book.Book)
		d.books[symbol] = byVenue
	}
	if b, ok := byVenue[venue]; ok {
		return b
	}
	b := book.New(symbol, venue)
	byVenue[venue] = b
	d.venueOrder[symbol] = append(d.venueOrder[symbol], venue)
	return b
}

// Book returns nil for an unknown (symbol, venue); callers treat that as a
// silent no-op.
func (d *Detector) Book(symbol, venue string) *book.Book {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.books[symbol][venue]
}

// Venues lists the registered venues for a symbol in registration order.
func (d *Detector) Venues(symbol string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.venueOrder[symbol]))
	copy(out, d.venueOrder[symbol])
	return out
}

func (d *Detector) SetMinProfitBPS(bps float64) {
	d.mu.Lock()
	d.minProfitBPS = bps
	d.mu.Unlock()
}

func (d *Detector) MinProfitBPS() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.minProfitBPS
}

// Scan checks every venue pair for the symbol, both directions, and returns
// the opportunities clearing the configured floor. Pairs are visited in
// registration order; simultaneously crossed pairs are reported in that
// order, not sorted by profit. updateTime is the triggering update's
// timestamp and anchors each opportunity's detection latency.
func (d *Detector) Scan(symbol string, updateTime time.Time) []Opportunity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	venues := d.venueOrder[symbol]
	if len(venues) < 2 {
		return nil
	}
	byVenue := d.books[symbol]

	var out []Opportunity
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			qa := byVenue[venues[i]].Quote()
			qb := byVenue[venues[j]].Quote()

			if qa.AskPrice > 0 && qb.BidPrice > 0 && qb.BidPrice > qa.AskPrice {
				if op, ok := d.opportunity(symbol, venues[i], venues[j], qa.AskPrice, qb.BidPrice, updateTime); ok {
					out = append(out, op)
				}
			}
			if qb.AskPrice > 0 && qa.BidPrice > 0 && qa.BidPrice > qb.AskPrice {
				if op, ok := d.opportunity(symbol, venues[j], venues[i], qb.AskPrice, qa.BidPrice, updateTime); ok {
					out = append(out, op)
				}
			}
		}
	}
	return out
}

func (d *Detector) opportunity(symbol, buyVenue, sellVenue string, buyPrice, sellPrice float64, updateTime time.Time) (Opportunity, bool) {
	bps := ProfitBPS(buyPrice, sellPrice)
	if bps < d.minProfitBPS {
		return Opportunity{}, false
	}
	now := time.Now()
	return Opportunity{
		Symbol:     symbol,
		BuyVenue:   buyVenue,
		SellVenue:  sellVenue,
		BuyPrice:   buyPrice,
		SellPrice:  sellPrice,
		ProfitBPS:  bps,
		DetectedAt: now,
		Latency:    now.Sub(updateTime),
	}, true
}
