package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"arb-sim-bot/internal/journal"

	"go.uber.org/zap"
)

// Tailer follows the decision journal and emits each new record. It
// starts at the end of the file so a restarted bridge only streams
// live decisions, and it rewinds when the bot truncates the journal
// on its own restart.
type Tailer struct {
	path     string
	interval time.Duration
	log      *zap.Logger
}

func NewTailer(path string, interval time.Duration, log *zap.Logger) *Tailer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tailer{path: path, interval: interval, log: log}
}

func (t *Tailer) Run(ctx context.Context, emit func(journal.Record)) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var (
		file   *os.File
		offset int64
	)
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	// Only the very first open skips to the end of the file. A
	// journal that shows up, or is reopened, after that point is all
	// news and is read from the top.
	skipExisting := true
	for {
		if file == nil {
			if f, err := os.Open(t.path); err == nil {
				file = f
				offset = 0
				if skipExisting {
					if end, err := f.Seek(0, io.SeekEnd); err == nil {
						offset = end
					}
				}
				t.log.Info("journal tail started",
					zap.String("path", t.path),
					zap.Int64("offset", offset),
				)
			}
			skipExisting = false
		}
		if file != nil {
			next, err := t.drain(file, offset, emit)
			if err != nil {
				t.log.Warn("journal tail read failed", zap.Error(err))
				_ = file.Close()
				file = nil
				offset = 0
			} else {
				offset = next
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain reads everything appended past offset and emits the complete
// rows. A trailing partial line stays in the file until its newline
// arrives.
func (t *Tailer) drain(file *os.File, offset int64, emit func(journal.Record)) (int64, error) {
	st, err := file.Stat()
	if err != nil {
		return offset, err
	}
	if cur, err := os.Stat(t.path); err == nil && !os.SameFile(st, cur) {
		return offset, errors.New("journal file replaced")
	}
	size := st.Size()
	if size < offset {
		// The bot truncates the journal when it starts a session.
		offset = 0
	}
	if size == offset {
		return offset, nil
	}

	buf := make([]byte, size-offset)
	n, err := file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return offset, err
	}
	buf = buf[:n]
	consumed := bytes.LastIndexByte(buf, '\n')
	if consumed < 0 {
		return offset, nil
	}

	for _, line := range strings.Split(string(buf[:consumed]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == journal.Header {
			continue
		}
		rec, err := journal.ParseLine(line)
		if err != nil {
			t.log.Debug("journal line skipped", zap.String("line", line), zap.Error(err))
			continue
		}
		emit(rec)
	}
	return offset + int64(consumed) + 1, nil
}
