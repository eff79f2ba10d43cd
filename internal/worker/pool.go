package worker

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Params are the per-customer settings shared by a run.
type Params struct {
	Iterations   int
	MaxAmount    decimal.Decimal
	MaxThinkTime time.Duration
	// Seed makes a run reproducible; zero picks a random seed.
	Seed   uint64
	Sleep  SleepFunc
	Logger zerolog.Logger
}

// Assign creates n customers. Customer i is bound to accountIDs[i mod
// len(accountIDs)], so with more customers than accounts several customers
// share an account.
func Assign(accountIDs []int, n int, p Params) []*Customer {
	if len(accountIDs) == 0 || n <= 0 {
		return nil
	}
	seed := p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	customers := make([]*Customer, n)
	for i := range n {
		customers[i] = &Customer{
			ID:           i + 1,
			AccountID:    accountIDs[i%len(accountIDs)],
			Iterations:   p.Iterations,
			MaxAmount:    p.MaxAmount,
			MaxThinkTime: p.MaxThinkTime,
			Rand:         rand.New(rand.NewPCG(seed, uint64(i+1))),
			Sleep:        p.Sleep,
			Logger:       p.Logger,
		}
	}
	return customers
}

// Run starts every customer on its own goroutine, waits for all of them and
// returns their reports in customer order.
func Run(ctx context.Context, ops Operations, customers []*Customer) []Report {
	reports := make([]Report, len(customers))
	var g errgroup.Group
	for i, c := range customers {
		g.Go(func() error {
			reports[i] = c.Run(ctx, ops)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Totals sums reports. CustomerID and AccountID are left zero and
// Transactions is not merged.
func Totals(reports []Report) Report {
	var t Report
	for _, r := range reports {
		t.Attempts += r.Attempts
		t.Deposits += r.Deposits
		t.Withdrawals += r.Withdrawals
		t.Rejected += r.Rejected
		t.Failures += r.Failures
		t.Deposited = t.Deposited.Add(r.Deposited)
		t.Withdrawn = t.Withdrawn.Add(r.Withdrawn)
		t.Canceled = t.Canceled || r.Canceled
	}
	return t
}
