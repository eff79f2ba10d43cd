package memory

import (
	"context"
	"sync"

	"github.com/banksim-dev/banksim/internal/model"
)

// Log is a concurrency-safe in-memory append-only transaction log.
type Log struct {
	mu         sync.RWMutex
	entries    []model.Transaction
	appendHook func(model.Transaction) error
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Append records the entry.
func (l *Log) Append(ctx context.Context, txn model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendHook != nil {
		if err := l.appendHook(txn); err != nil {
			return err
		}
	}
	l.entries = append(l.entries, txn)
	return nil
}

// History returns the account's entries in append order.
func (l *Log) History(ctx context.Context, accountID int) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Transaction
	for _, t := range l.entries {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Entries returns a copy of every entry in append order.
func (l *Log) Entries() []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// OnAppend installs a hook run before every append; a non-nil error fails
// the append. Used to inject faults.
func (l *Log) OnAppend(hook func(model.Transaction) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendHook = hook
}
