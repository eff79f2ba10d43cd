package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/banksim-dev/banksim/internal/model"
)

// CSVLog appends ledger entries to a CSV file. Each Append is written and
// flushed before it returns. Safe for concurrent use.
type CSVLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
	cw   *csv.Writer
}

// OpenCSV opens (or creates, with header) the CSV ledger at path.
func OpenCSV(path string) (*CSVLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if info, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	cw := csv.NewWriter(f)
	if isNew {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	return &CSVLog{path: path, f: f, cw: cw}, nil
}

// Path returns the file path of the ledger.
func (l *CSVLog) Path() string {
	return l.path
}

// Append writes one entry.
func (l *CSVLog) Append(ctx context.Context, txn model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("ledger %s is closed", l.path)
	}
	if err := l.cw.Write(MarshalTransaction(txn)); err != nil {
		return fmt.Errorf("writing entry %s: %w", txn.ID, err)
	}
	l.cw.Flush()
	if err := l.cw.Error(); err != nil {
		return fmt.Errorf("flushing entry %s: %w", txn.ID, err)
	}
	return nil
}

// History returns the account's entries in file order.
func (l *CSVLog) History(ctx context.Context, accountID int) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	all, err := ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, t := range all {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Close flushes and closes the file.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.cw.Flush()
	err := errors.Join(l.cw.Error(), l.f.Close())
	l.f = nil
	if err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}
	return nil
}

// ReadFile reads all entries from a ledger CSV file. A missing file yields
// no entries.
func ReadFile(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}
