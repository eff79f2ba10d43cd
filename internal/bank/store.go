package bank

import (
	"context"

	"github.com/banksim-dev/banksim/internal/model"
)

// AccountStore is keyed persistence of accounts. Implementations must be
// safe for concurrent use and provide last-write-wins semantics per ID.
// Get returns an error wrapping ErrAccountNotFound for unknown IDs.
type AccountStore interface {
	Get(ctx context.Context, id int) (model.Account, error)
	Put(ctx context.Context, acct model.Account) error
}

// TransactionLog is an append-only sink for ledger entries. Implementations
// must be safe for concurrent use.
type TransactionLog interface {
	Append(ctx context.Context, txn model.Transaction) error
}

// AccountLister is implemented by stores that can enumerate accounts.
type AccountLister interface {
	List(ctx context.Context) ([]model.Account, error)
}

// HistoryReader is implemented by logs that can return an account's
// entries in append order.
type HistoryReader interface {
	History(ctx context.Context, accountID int) ([]model.Transaction, error)
}
