package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/model"
)

// Tee fans every entry out to several logs. An Append is attempted on every
// sink even when an earlier one fails; the failures are joined.
type Tee struct {
	sinks []bank.TransactionLog
}

// NewTee creates a Tee over sinks. Nil sinks are skipped.
func NewTee(sinks ...bank.TransactionLog) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

// Append writes txn to every sink.
func (t *Tee) Append(ctx context.Context, txn model.Transaction) error {
	var errs []error
	for i, s := range t.sinks {
		if err := s.Append(ctx, txn); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// History is served by the first sink that can read history.
func (t *Tee) History(ctx context.Context, accountID int) ([]model.Transaction, error) {
	for _, s := range t.sinks {
		if hr, ok := s.(bank.HistoryReader); ok {
			return hr.History(ctx, accountID)
		}
	}
	return nil, bank.ErrHistoryUnsupported
}
