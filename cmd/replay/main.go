package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"arb-sim-bot/internal/journal"
	"arb-sim-bot/internal/risk"
)

const defaultTopCount = 5

func main() {
	archivePath := flag.String("archive", "", "msgpack archive to replay")
	csvPath := flag.String("csv", "", "CSV journal to replay, used when -archive is empty")
	symbol := flag.String("symbol", "", "only include records for this symbol")
	venue := flag.String("venue", "", "only include records with this venue on either leg")
	approvedOnly := flag.Bool("approved-only", false, "only include approved records")
	top := flag.Int("top", defaultTopCount, "number of best opportunities to print")
	flag.Parse()

	var (
		source  string
		records []journal.Record
		err     error
	)
	switch {
	case *archivePath != "":
		source = *archivePath
		records, err = readArchive(*archivePath)
	case *csvPath != "":
		source = *csvPath
		records, err = readCSV(*csvPath)
	default:
		fatal(errors.New("one of -archive or -csv is required"))
	}
	if err != nil {
		fatal(err)
	}

	total := len(records)
	records = filterRecords(records, *symbol, *venue, *approvedOnly)

	fmt.Printf("source: %s\n", source)
	fmt.Printf("records: %d total, %d after filters\n", total, len(records))
	if len(records) == 0 {
		return
	}

	printSpan(records)
	printDecisions(records)
	printProfit(records)
	printLatency(records)
	printVenuePairs(records)
	printTop(records, *top)
}

func readArchive(path string) ([]journal.Record, error) {
	reader, err := journal.OpenArchiveReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	var records []journal.Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("archive record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

func readCSV(path string) ([]journal.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var (
		records []journal.Record
		skipped int
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == journal.Header {
			continue
		}
		rec, err := journal.ParseLine(line)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d malformed lines\n", skipped)
	}
	return records, nil
}

func filterRecords(records []journal.Record, symbol, venue string, approvedOnly bool) []journal.Record {
	kept := records[:0]
	for _, rec := range records {
		if symbol != "" && !strings.EqualFold(rec.Symbol, symbol) {
			continue
		}
		if venue != "" && !strings.EqualFold(rec.BuyVenue, venue) && !strings.EqualFold(rec.SellVenue, venue) {
			continue
		}
		if approvedOnly && rec.Decision != int(risk.Approved) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func printSpan(records []journal.Record) {
	first, last := records[0].DetectedAt, records[0].DetectedAt
	for _, rec := range records[1:] {
		if rec.DetectedAt < first {
			first = rec.DetectedAt
		}
		if rec.DetectedAt > last {
			last = rec.DetectedAt
		}
	}
	start := time.Unix(0, first).UTC()
	end := time.Unix(0, last).UTC()
	fmt.Printf("span: %s -> %s (%.1fs)\n",
		start.Format(time.RFC3339), end.Format(time.RFC3339), end.Sub(start).Seconds())
}

func printDecisions(records []journal.Record) {
	counts := make(map[int]int)
	for _, rec := range records {
		counts[rec.Decision]++
	}
	codes := make([]int, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	fmt.Println("decisions:")
	for _, code := range codes {
		count := counts[code]
		fmt.Printf("  %-26s %7d  %5.1f%%\n",
			risk.Code(code).String(), count, 100*float64(count)/float64(len(records)))
	}
}

func printProfit(records []journal.Record) {
	gross := summarize(records, func(rec journal.Record) float64 { return rec.ProfitBPS })
	fmt.Printf("profit_bps: min=%.1f avg=%.1f max=%.1f\n", gross.min, gross.avg, gross.max)

	var approved []journal.Record
	for _, rec := range records {
		if rec.Decision == int(risk.Approved) {
			approved = append(approved, rec)
		}
	}
	if len(approved) == 0 {
		return
	}
	net := summarize(approved, func(rec journal.Record) float64 { return rec.NetProfitBPS })
	fmt.Printf("net_profit_bps approved: min=%.1f avg=%.1f max=%.1f\n", net.min, net.avg, net.max)
}

func printLatency(records []journal.Record) {
	lat := summarize(records, func(rec journal.Record) float64 { return float64(rec.LatencyNS) })
	fmt.Printf("detection_latency: min=%s avg=%s max=%s\n",
		time.Duration(int64(lat.min)), time.Duration(int64(lat.avg)), time.Duration(int64(lat.max)))
}

func printVenuePairs(records []journal.Record) {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.BuyVenue+"->"+rec.SellVenue]++
	}
	pairs := make([]string, 0, len(counts))
	for pair := range counts {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if counts[pairs[i]] != counts[pairs[j]] {
			return counts[pairs[i]] > counts[pairs[j]]
		}
		return pairs[i] < pairs[j]
	})

	fmt.Println("venue pairs:")
	for _, pair := range pairs {
		fmt.Printf("  %-20s %7d\n", pair, counts[pair])
	}
}

func printTop(records []journal.Record, n int) {
	if n <= 0 {
		return
	}
	sorted := make([]journal.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NetProfitBPS > sorted[j].NetProfitBPS })
	if n > len(sorted) {
		n = len(sorted)
	}

	fmt.Println("top opportunities by net_profit_bps:")
	for _, rec := range sorted[:n] {
		fmt.Printf("  %s %s %s->%s buy=%.2f sell=%.2f net=%.1fbps %s\n",
			time.Unix(0, rec.DetectedAt).UTC().Format(time.RFC3339),
			rec.Symbol, rec.BuyVenue, rec.SellVenue,
			rec.BuyPrice, rec.SellPrice, rec.NetProfitBPS,
			risk.Code(rec.Decision).String())
	}
}

type rollup struct {
	min float64
	avg float64
	max float64
}

func summarize(records []journal.Record, value func(journal.Record) float64) rollup {
	out := rollup{min: value(records[0]), max: value(records[0])}
	sum := 0.0
	for _, rec := range records {
		v := value(rec)
		if v < out.min {
			out.min = v
		}
		if v > out.max {
			out.max = v
		}
		sum += v
	}
	out.avg = sum / float64(len(records))
	return out
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
