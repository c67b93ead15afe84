// Package ledger persists executed trades and summarises them.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"arbscanner/internal/model"
)

// FileLedger keeps every trade in a single JSON array file. The file is
// rewritten through a temp file and a rename on each append, so readers
// never observe a partial array.
type FileLedger struct {
	mu      sync.Mutex
	path    string
	records []model.TradeRecord
	logger  *slog.Logger
}

// OpenFileLedger loads the ledger at path, creating it lazily on first append.
func OpenFileLedger(path string, logger *slog.Logger) (*FileLedger, error) {
	l := &FileLedger{path: path, logger: logger.With("component", "ledger", "path", path)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &l.records); err != nil {
			return nil, fmt.Errorf("decode ledger %s: %w", path, err)
		}
	}
	l.logger.Info("Trade ledger loaded", "trades", len(l.records))
	return l, nil
}

// Path returns the file backing the ledger.
func (l *FileLedger) Path() string {
	return l.path
}

// LogTrade appends a record and rewrites the file. On failure the record is
// not kept in memory either.
func (l *FileLedger) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := append(l.records, trade)
	if err := l.write(next); err != nil {
		return err
	}
	l.records = next
	return nil
}

// ListTrades returns the last limit records in execution order, or all of
// them when limit <= 0.
func (l *FileLedger) ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := 0
	if limit > 0 && len(l.records) > limit {
		from = len(l.records) - limit
	}
	out := make([]model.TradeRecord, len(l.records)-from)
	copy(out, l.records[from:])
	return out, nil
}

// Len returns the number of stored records.
func (l *FileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *FileLedger) write(records []model.TradeRecord) error {
	if records == nil {
		records = []model.TradeRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", l.path, err)
	}
	return nil
}
