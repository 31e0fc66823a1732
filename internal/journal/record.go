// Package journal persists one decision record per detected
// opportunity: a CSV file the dashboard bridge tails, and an optional
// msgpack archive for offline replay.
package journal

import (
	"fmt"
	"strconv"
	"strings"
)

// Header is the first line of every journal file. The bridge keys off
// these column names, so the order is load-bearing.
const Header = "timestamp,symbol,buy_exchange,sell_exchange,buy_price,sell_price,profit_bps,net_profit_bps,latency_ns,decision"

const fieldCount = 10

// Record is one journaled decision. DetectedAt and Latency carry raw
// nanosecond counts to keep the file format flat.
type Record struct {
	DetectedAt   int64
	Symbol       string
	BuyVenue     string
	SellVenue    string
	BuyPrice     float64
	SellPrice    float64
	ProfitBPS    float64
	NetProfitBPS float64
	LatencyNS    int64
	Decision     int
}

func (r Record) csvLine() string {
	return fmt.Sprintf("%d,%s,%s,%s,%.2f,%.2f,%.1f,%.1f,%d,%d",
		r.DetectedAt, r.Symbol, r.BuyVenue, r.SellVenue,
		r.BuyPrice, r.SellPrice, r.ProfitBPS, r.NetProfitBPS,
		r.LatencyNS, r.Decision)
}

// ParseLine decodes one CSV data row. The header line is not a valid
// input.
func ParseLine(line string) (Record, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != fieldCount {
		return Record{}, fmt.Errorf("journal line has %d fields, want %d", len(fields), fieldCount)
	}

	var (
		rec Record
		err error
	)
	if rec.DetectedAt, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parse timestamp: %w", err)
	}
	rec.Symbol = fields[1]
	rec.BuyVenue = fields[2]
	rec.SellVenue = fields[3]
	if rec.BuyPrice, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return Record{}, fmt.Errorf("parse buy price: %w", err)
	}
	if rec.SellPrice, err = strconv.ParseFloat(fields[5], 64); err != nil {
		return Record{}, fmt.Errorf("parse sell price: %w", err)
	}
	if rec.ProfitBPS, err = strconv.ParseFloat(fields[6], 64); err != nil {
		return Record{}, fmt.Errorf("parse profit bps: %w", err)
	}
	if rec.NetProfitBPS, err = strconv.ParseFloat(fields[7], 64); err != nil {
		return Record{}, fmt.Errorf("parse net profit bps: %w", err)
	}
	if rec.LatencyNS, err = strconv.ParseInt(fields[8], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parse latency: %w", err)
	}
	if rec.Decision, err = strconv.Atoi(fields[9]); err != nil {
		return Record{}, fmt.Errorf("parse decision: %w", err)
	}
	return rec, nil
}
