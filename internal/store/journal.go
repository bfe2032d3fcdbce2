package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/polytrigger/polytrigger/internal/event"
	"github.com/rs/zerolog"
)

// journalRecord is one append-only line: the signal/order that triggered
// a trade plus its execution result and a wall-clock logged-at stamp.
type journalRecord struct {
	LoggedAt time.Time             `json:"logged_at"`
	Order    event.Order           `json:"order"`
	Result   event.ExecutionResult `json:"result"`
}

// Journal is the append-only, daily-rotated trade log (C7). I/O errors
// are logged but never propagated — trading must never be halted by a
// journaling failure.
type Journal struct {
	mu  sync.Mutex
	dir string
	log zerolog.Logger
	now func() time.Time
}

// NewJournal returns a Journal writing into dir, creating it if absent.
func NewJournal(dir string, log zerolog.Logger) *Journal {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("journal: failed to create data directory")
	}
	return &Journal{dir: dir, log: log, now: time.Now}
}

func (j *Journal) dailyPath(at time.Time) string {
	return filepath.Join(j.dir, fmt.Sprintf("trades_%s.jsonl", at.Format("2006-01-02")))
}

// LogExecution appends one record for a submitted order and its result.
// Errors are swallowed after being logged; the journal is a
// best-effort audit trail, not the source of truth for recovery.
func (j *Journal) LogExecution(order event.Order, result event.ExecutionResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	rec := journalRecord{LoggedAt: now, Order: order, Result: result}

	line, err := json.Marshal(rec)
	if err != nil {
		j.log.Error().Err(err).Msg("journal: failed to marshal record")
		return
	}

	path := j.dailyPath(now)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		j.log.Error().Err(err).Str("path", path).Msg("journal: failed to open file")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		j.log.Error().Err(err).Str("path", path).Msg("journal: failed to write record")
		return
	}
	if err := f.Sync(); err != nil {
		j.log.Warn().Err(err).Str("path", path).Msg("journal: failed to flush record")
	}
}
