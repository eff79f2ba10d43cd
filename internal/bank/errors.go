package bank

import (
	"errors"
	"fmt"

	"github.com/banksim-dev/banksim/internal/model"
)

var (
	// ErrInvalidAmount is returned for negative, non-finite or malformed
	// amounts. Nothing is locked, changed or logged.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAccountNotFound is returned when no account has the given ID.
	// Nothing is changed or logged.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by Open for an ID already in the store.
	ErrAccountExists = errors.New("account already exists")
	// ErrInsufficientFunds marks a rejected withdrawal. Withdraw does not
	// return it; the rejection is an error-flagged ledger entry. See Rejected.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrStore wraps failures of the AccountStore.
	ErrStore = errors.New("account store")
	// ErrLog wraps failures of the TransactionLog.
	ErrLog = errors.New("transaction log")
	// ErrHistoryUnsupported is returned when the configured log cannot
	// serve per-account history.
	ErrHistoryUnsupported = errors.New("transaction history not supported")
)

// Rejected converts an error-flagged ledger entry into an error wrapping
// ErrInsufficientFunds. It returns nil for applied entries.
func Rejected(txn model.Transaction) error {
	if !txn.Error {
		return nil
	}
	return fmt.Errorf("account %d: %s of %s exceeds balance %s: %w",
		txn.AccountID, txn.Type, txn.Amount.StringFixed(2), txn.BalanceAfter.StringFixed(2), ErrInsufficientFunds)
}
