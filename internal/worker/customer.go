// Package worker simulates customers issuing random deposits and
// withdrawals against their assigned accounts.
package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/model"
)

// Operations is the account API a customer drives. *bank.Service
// implements it.
type Operations interface {
	Deposit(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error)
	Withdraw(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error)
	Balance(ctx context.Context, accountID int) (decimal.Decimal, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Customer repeatedly deposits into or withdraws from one account.
type Customer struct {
	ID           int
	AccountID    int
	Iterations   int
	MaxAmount    decimal.Decimal // amounts are drawn from [0, MaxAmount)
	MaxThinkTime time.Duration   // pauses are drawn from [0, MaxThinkTime) in whole milliseconds

	Rand   *rand.Rand
	Sleep  SleepFunc
	Now    func() time.Time
	Logger zerolog.Logger
}

// Report is what one customer did.
type Report struct {
	CustomerID  int
	AccountID   int
	Attempts    int
	Deposits    int
	Withdrawals int
	Rejected    int
	Failures    int
	Deposited   decimal.Decimal
	Withdrawn   decimal.Decimal
	LastBalance decimal.Decimal
	// Transactions holds one entry per attempt. Attempts that failed
	// outright carry a locally built entry with Error set and the account
	// balance read right after the attempt, or zero if that read failed.
	Transactions []model.Transaction
	Canceled     bool
}

// Run performs the customer's iterations. It never fails: errors from the
// account API are recorded in the report and the loop goes on. It returns
// early only when ctx is canceled.
func (c *Customer) Run(ctx context.Context, ops Operations) Report {
	c.defaults()
	logger := c.Logger.With().Int("worker", c.ID).Int("account_id", c.AccountID).Logger()
	report := Report{CustomerID: c.ID, AccountID: c.AccountID}

	for i := 0; i < c.Iterations; i++ {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}

		typ, amount := c.decide()
		logger.Debug().Int("iteration", i).Str("type", string(typ)).Str("amount", amount.StringFixed(2)).Msg("attempting")

		// An operation that has started runs to completion; cancellation is
		// only observed between iterations.
		opCtx := context.WithoutCancel(ctx)
		txn, err := c.invoke(opCtx, ops, typ, amount)
		report.Attempts++
		switch {
		case err != nil && errors.Is(err, bank.ErrLog):
			// Balance committed, only the ledger write failed.
			report.Failures++
			report.record(txn)
			logger.Warn().Err(err).Msg("transaction applied but not logged")
		case err != nil:
			report.Failures++
			logger.Warn().Err(err).Str("type", string(typ)).Msg("transaction failed")
		default:
			report.record(txn)
		}

		bal, balErr := ops.Balance(opCtx, c.AccountID)
		if balErr != nil {
			logger.Warn().Err(balErr).Msg("balance query failed")
		} else {
			report.LastBalance = bal
		}
		if err != nil && !errors.Is(err, bank.ErrLog) {
			// Nothing was applied, so the balance read just now is the one
			// the attempt left behind. It stays zero if that read failed too.
			report.Transactions = append(report.Transactions, c.failedEntry(typ, amount, bal))
		}

		if i == c.Iterations-1 {
			break
		}
		if err := c.Sleep(ctx, c.thinkTime()); err != nil {
			report.Canceled = true
			break
		}
	}

	logger.Info().
		Int("attempts", report.Attempts).
		Int("rejected", report.Rejected).
		Int("failures", report.Failures).
		Str("balance", report.LastBalance.StringFixed(2)).
		Bool("canceled", report.Canceled).
		Msg("customer done")
	return report
}

func (c *Customer) invoke(ctx context.Context, ops Operations, typ model.TransactionType, amount decimal.Decimal) (model.Transaction, error) {
	if typ == model.TypeDeposit {
		return ops.Deposit(ctx, c.AccountID, amount)
	}
	return ops.Withdraw(ctx, c.AccountID, amount)
}

// decide picks deposit or withdrawal with equal odds and an amount in
// [0, MaxAmount) at cent granularity.
func (c *Customer) decide() (model.TransactionType, decimal.Decimal) {
	typ := model.TypeWithdrawal
	if c.Rand.IntN(2) == 0 {
		typ = model.TypeDeposit
	}
	maxCents := c.MaxAmount.Shift(2).IntPart()
	if maxCents <= 0 {
		return typ, decimal.Zero
	}
	return typ, decimal.New(c.Rand.Int64N(maxCents), -2)
}

func (c *Customer) thinkTime() time.Duration {
	ms := c.MaxThinkTime.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return time.Duration(c.Rand.Int64N(ms)) * time.Millisecond
}

func (c *Customer) failedEntry(typ model.TransactionType, amount, balance decimal.Decimal) model.Transaction {
	return model.Transaction{
		ID:           id.NewTransactionID(),
		AccountID:    c.AccountID,
		Timestamp:    c.Now(),
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balance,
		Error:        true,
	}
}

func (c *Customer) defaults() {
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.Sleep == nil {
		c.Sleep = Sleep
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
}

func (r *Report) record(txn model.Transaction) {
	r.Transactions = append(r.Transactions, txn)
	switch {
	case txn.Error:
		r.Rejected++
	case txn.Type == model.TypeDeposit:
		r.Deposits++
		r.Deposited = r.Deposited.Add(txn.Amount)
	default:
		r.Withdrawals++
		r.Withdrawn = r.Withdrawn.Add(txn.Amount)
	}
	r.LastBalance = txn.BalanceAfter
}

// Sleep waits for d unless ctx is canceled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
