package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/model"
)

// Service is the only path that mutates account balances.
//
// Each deposit or withdrawal runs as one critical section per account:
// read the account, decide, write the new balance, append the ledger entry.
// Operations on different accounts never share a lock.
//
// The store write and the log append are not atomic with each other. If
// the write succeeds and the append fails, the new balance stands and the
// caller gets the entry together with an ErrLog error; the ledger is then
// missing that entry. There is no rollback.
type Service struct {
	accounts AccountStore
	ledger   TransactionLog
	locks    keyedMutex
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how ledger entry IDs are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service over an account store and a transaction log.
func NewService(accounts AccountStore, ledger TransactionLog, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		ledger:   ledger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    id.NewTransactionID,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("pkg", "bank").Logger()
	return s
}

// Open registers a new account with its opening balance. It is a setup
// operation and writes no ledger entry.
func (s *Service) Open(ctx context.Context, acct model.Account) (model.Account, error) {
	if acct.ID <= 0 {
		return model.Account{}, fmt.Errorf("opening account: invalid ID %d", acct.ID)
	}
	opening, err := normalizeAmount(acct.Balance)
	if err != nil {
		return model.Account{}, fmt.Errorf("opening account %d: %w", acct.ID, err)
	}
	acct.Balance = opening
	if acct.Status == "" {
		acct.Status = model.StatusActive
	}
	if acct.Type == "" {
		acct.Type = model.AccountTypeChecking
	}
	now := s.now()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	if acct.UpdatedAt.IsZero() {
		acct.UpdatedAt = acct.CreatedAt
	}

	unlock := s.locks.Lock(acct.ID)
	defer unlock()

	_, err = s.accounts.Get(ctx, acct.ID)
	switch {
	case err == nil:
		return model.Account{}, fmt.Errorf("opening account %d: %w", acct.ID, ErrAccountExists)
	case !errors.Is(err, ErrAccountNotFound):
		return model.Account{}, fmt.Errorf("opening account %d: %w: %w", acct.ID, ErrStore, err)
	}
	if err := s.accounts.Put(ctx, acct); err != nil {
		return model.Account{}, fmt.Errorf("opening account %d: %w: %w", acct.ID, ErrStore, err)
	}
	s.logger.Debug().Int("account_id", acct.ID).Str("balance", acct.Balance.StringFixed(2)).Msg("account opened")
	return acct, nil
}

// Deposit adds amount to the account balance and records a ledger entry.
// A zero amount is accepted and recorded.
func (s *Service) Deposit(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error) {
	return s.apply(ctx, accountID, model.TypeDeposit, amount, func(balance, amt decimal.Decimal) (decimal.Decimal, bool) {
		return balance.Add(amt), true
	})
}

// Withdraw subtracts amount from the account balance if the balance covers
// it. Otherwise the balance is left alone and an error-flagged entry with
// the unchanged balance is recorded; that is a normal outcome and the
// returned error is nil. Use Rejected to turn it into an error.
func (s *Service) Withdraw(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error) {
	return s.apply(ctx, accountID, model.TypeWithdrawal, amount, func(balance, amt decimal.Decimal) (decimal.Decimal, bool) {
		if amt.GreaterThan(balance) {
			return balance, false
		}
		return balance.Sub(amt), true
	})
}

// Balance returns the account balance as last written to the store.
func (s *Service) Balance(ctx context.Context, accountID int) (decimal.Decimal, error) {
	acct, err := s.load(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// Account returns a copy of the account.
func (s *Service) Account(ctx context.Context, accountID int) (model.Account, error) {
	return s.load(ctx, accountID)
}

// decideFunc returns the new balance and whether the operation applies.
type decideFunc func(balance, amount decimal.Decimal) (decimal.Decimal, bool)

func (s *Service) apply(ctx context.Context, accountID int, typ model.TransactionType, amount decimal.Decimal, decide decideFunc) (model.Transaction, error) {
	amount, err := normalizeAmount(amount)
	if err != nil {
		return model.Transaction{}, err
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	acct, err := s.load(ctx, accountID)
	if err != nil {
		return model.Transaction{}, err
	}

	newBalance, ok := decide(acct.Balance, amount)
	if ok {
		acct.Balance = newBalance
		acct.UpdatedAt = s.now()
		if err := s.accounts.Put(ctx, acct); err != nil {
			s.logger.Error().Err(err).Int("account_id", accountID).Str("type", string(typ)).Msg("persisting balance failed")
			return model.Transaction{}, fmt.Errorf("persisting account %d: %w: %w", accountID, ErrStore, err)
		}
	}

	txn := model.Transaction{
		ID:           s.newID(),
		AccountID:    accountID,
		Timestamp:    s.now(),
		Type:         typ,
		Amount:       amount,
		BalanceAfter: acct.Balance,
		Error:        !ok,
	}
	if err := s.ledger.Append(ctx, txn); err != nil {
		s.logger.Error().Err(err).Int("account_id", accountID).Str("txn_id", txn.ID).Msg("ledger append failed, balance already committed")
		return txn, fmt.Errorf("recording %s on account %d: %w: %w", typ, accountID, ErrLog, err)
	}

	event := s.logger.Debug()
	if !ok {
		event = s.logger.Info()
	}
	event.Int("account_id", accountID).
		Str("type", string(typ)).
		Str("amount", amount.StringFixed(2)).
		Str("balance", txn.BalanceAfter.StringFixed(2)).
		Bool("error", txn.Error).
		Msg("transaction recorded")
	return txn, nil
}

func (s *Service) load(ctx context.Context, accountID int) (model.Account, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return model.Account{}, fmt.Errorf("account %d: %w", accountID, ErrAccountNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("loading account %d: %w: %w", accountID, ErrStore, err)
	}
	return acct, nil
}
