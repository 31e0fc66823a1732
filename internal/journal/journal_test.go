package journal

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func testRecord() Record {
	return Record{
		DetectedAt:   1724580000000000000,
		Symbol:       "BTCUSDT",
		BuyVenue:     "binance",
		SellVenue:    "kraken",
		BuyPrice:     49000.25,
		SellPrice:    50000.75,
		ProfitBPS:    204.1,
		NetProfitBPS: 183.9,
		LatencyNS:    48500,
		Decision:     0,
	}
}

func TestWriterWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.csv")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := testRecord()
	if err := w.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if lines[0] != Header {
		t.Fatalf("expected header %q, got %q", Header, lines[0])
	}

	parsed, err := ParseLine(lines[1])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != rec {
		t.Fatalf("expected %+v, got %+v", rec, parsed)
	}
}

func TestWriterTruncatesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.csv")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w.Append(testRecord())
	w.Close()

	w, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != Header {
		t.Fatalf("expected a fresh journal, got %q", string(data))
	}
}

func TestNilWriterDiscards(t *testing.T) {
	var w *Writer
	if err := w.Append(testRecord()); err != nil {
		t.Fatalf("nil append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestParseLineRejectsMalformedRows(t *testing.T) {
	if _, err := ParseLine("1,2,3"); err == nil {
		t.Fatalf("expected error for short row")
	}
	if _, err := ParseLine(Header); err == nil {
		t.Fatalf("expected error for header row")
	}
	row := testRecord().csvLine()
	broken := strings.Replace(row, "49000.25", "not-a-price", 1)
	if _, err := ParseLine(broken); err == nil {
		t.Fatalf("expected error for bad price")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.msgpack")
	w, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	first := testRecord()
	second := testRecord()
	second.Decision = 4
	second.NetProfitBPS = -12.5
	if err := w.Append(first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(second); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenArchiveReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()

	got, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != first {
		t.Fatalf("expected %+v, got %+v", first, got)
	}
	got, err = r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != second {
		t.Fatalf("expected %+v, got %+v", second, got)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestNilArchiveWriterDiscards(t *testing.T) {
	var w *ArchiveWriter
	if err := w.Append(testRecord()); err != nil {
		t.Fatalf("nil append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestArchiveReaderRejectsWrongArity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.msgpack")
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		t.Fatalf("encode: %v", err)
	}
	enc.EncodeInt(1)
	enc.EncodeInt(2)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := OpenArchiveReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer r.Close()
	if _, err := r.Next(); err == nil {
		t.Fatalf("expected arity error")
	}
}
