package journal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ArchiveWriter streams decision records to a compact msgpack file.
// Records are encoded as flat 10-element arrays in journal column
// order, so the archive and the CSV carry identical information.
type ArchiveWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *msgpack.Encoder
}

// OpenArchive truncates any previous archive at path.
func OpenArchive(path string) (*ArchiveWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &ArchiveWriter{file: file, enc: msgpack.NewEncoder(file)}, nil
}

func (w *ArchiveWriter) Append(rec Record) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return encodeRecord(w.enc, rec)
}

func (w *ArchiveWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func encodeRecord(enc *msgpack.Encoder, rec Record) error {
	if err := enc.EncodeArrayLen(fieldCount); err != nil {
		return err
	}
	if err := enc.EncodeInt(rec.DetectedAt); err != nil {
		return err
	}
	if err := enc.EncodeString(rec.Symbol); err != nil {
		return err
	}
	if err := enc.EncodeString(rec.BuyVenue); err != nil {
		return err
	}
	if err := enc.EncodeString(rec.SellVenue); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(rec.BuyPrice); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(rec.SellPrice); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(rec.ProfitBPS); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(rec.NetProfitBPS); err != nil {
		return err
	}
	if err := enc.EncodeInt(rec.LatencyNS); err != nil {
		return err
	}
	return enc.EncodeInt(int64(rec.Decision))
}

// ArchiveReader iterates an archive written by ArchiveWriter.
type ArchiveReader struct {
	file *os.File
	dec  *msgpack.Decoder
}

func OpenArchiveReader(path string) (*ArchiveReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &ArchiveReader{file: file, dec: msgpack.NewDecoder(file)}, nil
}

// Next returns the next record, or io.EOF at the end of the archive.
func (r *ArchiveReader) Next() (Record, error) {
	n, err := r.dec.DecodeArrayLen()
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode record header: %w", err)
	}
	if n != fieldCount {
		return Record{}, fmt.Errorf("archive record has %d fields, want %d", n, fieldCount)
	}

	var rec Record
	if rec.DetectedAt, err = r.dec.DecodeInt64(); err != nil {
		return Record{}, err
	}
	if rec.Symbol, err = r.dec.DecodeString(); err != nil {
		return Record{}, err
	}
	if rec.BuyVenue, err = r.dec.DecodeString(); err != nil {
		return Record{}, err
	}
	if rec.SellVenue, err = r.dec.DecodeString(); err != nil {
		return Record{}, err
	}
	if rec.BuyPrice, err = r.dec.DecodeFloat64(); err != nil {
		return Record{}, err
	}
	if rec.SellPrice, err = r.dec.DecodeFloat64(); err != nil {
		return Record{}, err
	}
	if rec.ProfitBPS, err = r.dec.DecodeFloat64(); err != nil {
		return Record{}, err
	}
	if rec.NetProfitBPS, err = r.dec.DecodeFloat64(); err != nil {
		return Record{}, err
	}
	if rec.LatencyNS, err = r.dec.DecodeInt64(); err != nil {
		return Record{}, err
	}
	decision, err := r.dec.DecodeInt()
	if err != nil {
		return Record{}, err
	}
	rec.Decision = decision
	return rec, nil
}

func (r *ArchiveReader) Close() error {
	return r.file.Close()
}
