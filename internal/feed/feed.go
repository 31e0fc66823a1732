// Package feed generates simulated market data. One Simulator per
// venue publishes bid and ask updates through a callback, the same
// shape a live exchange connection would deliver.
package feed

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Kind discriminates update records.
type Kind uint8

const (
	KindBid Kind = iota
	KindAsk
	KindTrade
)

func (k Kind) String() string {
	switch k {
	case KindBid:
		return "bid"
	case KindAsk:
		return "ask"
	case KindTrade:
		return "trade"
	}
	return "unknown"
}

// Update is one price-level event from a venue.
type Update struct {
	Kind     Kind
	Symbol   string
	Venue    string
	Price    float64
	Quantity float64
	Time     time.Time
	Seq      uint64
}

// Handler consumes updates synchronously on the feed's goroutine.
type Handler func(Update)

// Simulator drives one venue profile. Run owns all mutable state, so
// a Simulator must not be shared across goroutines.
type Simulator struct {
	profile Profile
	symbol  string
	handler Handler
	rng     *rand.Rand
	seq     uint64
}

func NewSimulator(profile Profile, symbol string, handler Handler) *Simulator {
	seed1, seed2 := profile.Seed, profile.Seed
	if profile.Seed == 0 {
		seed1, seed2 = rand.Uint64(), rand.Uint64()
	}
	return &Simulator{
		profile: profile,
		symbol:  symbol,
		handler: handler,
		rng:     rand.New(rand.NewPCG(seed1, seed2)),
	}
}

// Run emits updates until the context ends. Each iteration draws a
// mid around the base price, a half spread, and publishes the bid
// then the ask before sleeping the profile's cadence.
func (s *Simulator) Run(ctx context.Context) error {
	for {
		s.tick()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.delay()):
		}
	}
}

func (s *Simulator) tick() {
	p := s.profile
	mid := s.rng.NormFloat64()*p.BasePrice*p.Volatility + p.BasePrice
	if p.LagMax > p.LagMin {
		mid *= p.LagMin + s.rng.Float64()*(p.LagMax-p.LagMin)
	}
	half := math.Abs(s.rng.NormFloat64()*p.SpreadStdDev+p.SpreadMean) / 2

	s.publish(KindBid, mid-half)
	s.publish(KindAsk, mid+half)
}

func (s *Simulator) publish(kind Kind, price float64) {
	if s.handler == nil {
		return
	}
	s.seq++
	s.handler(Update{
		Kind:     kind,
		Symbol:   s.symbol,
		Venue:    s.profile.Venue,
		Price:    price,
		Quantity: s.profile.Quantity,
		Time:     time.Now(),
		Seq:      s.seq,
	})
}

func (s *Simulator) delay() time.Duration {
	minDelay, maxDelay := s.profile.MinInterval, s.profile.MaxInterval
	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + time.Duration(s.rng.Int64N(int64(maxDelay-minDelay)+1))
}
