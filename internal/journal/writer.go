package journal

import (
	"os"
	"sync"
)

// Writer appends decision records to a CSV journal. Each record is
// written straight through to the file so an external tail sees it
// immediately. A nil Writer discards everything, which keeps call
// sites free of enabled checks.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Open truncates any previous journal at path and writes the header.
func Open(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := file.WriteString(Header + "\n"); err != nil {
		file.Close()
		return nil, err
	}
	return &Writer{file: file}, nil
}

func (w *Writer) Append(rec Record) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.file.WriteString(rec.csvLine() + "\n")
	return err
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
