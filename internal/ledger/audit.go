package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/model"
)

// Audit rule numbers.
const (
	RuleNegativeBalance = 1
	RuleAmountFormat    = 2
	RuleChainBreak      = 3
	RuleWrongRejection  = 4
	RuleFinalBalance    = 5
	RuleUnknownAccount  = 6
)

// AuditError describes one ledger inconsistency.
type AuditError struct {
	Rule        int
	AccountID   int
	EntryID     string
	Description string
}

func (e AuditError) Error() string {
	if e.EntryID == "" {
		return fmt.Sprintf("rule %d [account %d]: %s", e.Rule, e.AccountID, e.Description)
	}
	return fmt.Sprintf("rule %d [account %d, %s]: %s", e.Rule, e.AccountID, e.EntryID, e.Description)
}

// Audit replays entries per account, in the order given, from the opening
// balances and checks them against each other and against the final
// balances. Entries for one account must be in the order they were applied.
// A nil final map skips the final-balance check.
func Audit(opening map[int]decimal.Decimal, final map[int]decimal.Decimal, entries []model.Transaction) []AuditError {
	var errs []AuditError

	running := make(map[int]decimal.Decimal, len(opening))
	for id, bal := range opening {
		running[id] = bal
	}

	hundred := decimal.NewFromInt(100)
	for _, txn := range entries {
		prev, ok := running[txn.AccountID]
		if !ok {
			errs = append(errs, AuditError{
				Rule:        RuleUnknownAccount,
				AccountID:   txn.AccountID,
				EntryID:     txn.ID,
				Description: "entry references an account with no opening balance",
			})
			continue
		}

		// Rule 1: no negative balance is ever recorded.
		if txn.BalanceAfter.IsNegative() {
			errs = append(errs, AuditError{
				Rule:        RuleNegativeBalance,
				AccountID:   txn.AccountID,
				EntryID:     txn.ID,
				Description: fmt.Sprintf("balance after transaction is negative (%s)", txn.BalanceAfter.StringFixed(2)),
			})
		}

		// Rule 2: amounts are non-negative with at most two decimal places.
		if txn.Amount.IsNegative() || !txn.Amount.Mul(hundred).Equal(txn.Amount.Mul(hundred).Floor()) {
			errs = append(errs, AuditError{
				Rule:        RuleAmountFormat,
				AccountID:   txn.AccountID,
				EntryID:     txn.ID,
				Description: fmt.Sprintf("amount %s is negative or has more than 2 decimal places", txn.Amount),
			})
		}

		// Rule 4: a rejection is only valid when the amount exceeded the balance.
		if txn.Error && txn.Type == model.TypeWithdrawal && !txn.Amount.GreaterThan(prev) {
			errs = append(errs, AuditError{
				Rule:        RuleWrongRejection,
				AccountID:   txn.AccountID,
				EntryID:     txn.ID,
				Description: fmt.Sprintf("withdrawal of %s rejected with balance %s", txn.Amount.StringFixed(2), prev.StringFixed(2)),
			})
		}

		// Rule 3: each entry continues from the previous balance.
		want := prev.Add(txn.Delta())
		if !txn.BalanceAfter.Equal(want) {
			errs = append(errs, AuditError{
				Rule:        RuleChainBreak,
				AccountID:   txn.AccountID,
				EntryID:     txn.ID,
				Description: fmt.Sprintf("balance after is %s, expected %s", txn.BalanceAfter.StringFixed(2), want.StringFixed(2)),
			})
		}
		running[txn.AccountID] = txn.BalanceAfter
	}

	if final == nil {
		return errs
	}

	// Rule 5: final = opening + applied deposits - applied withdrawals.
	sums := make(map[int]decimal.Decimal, len(opening))
	for id, bal := range opening {
		sums[id] = bal
	}
	for _, txn := range entries {
		if s, ok := sums[txn.AccountID]; ok {
			sums[txn.AccountID] = s.Add(txn.Delta())
		}
	}
	ids := make([]int, 0, len(final))
	for id := range final {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		want, ok := sums[id]
		if !ok {
			continue
		}
		if !final[id].Equal(want) {
			errs = append(errs, AuditError{
				Rule:        RuleFinalBalance,
				AccountID:   id,
				Description: fmt.Sprintf("final balance %s, ledger implies %s", final[id].StringFixed(2), want.StringFixed(2)),
			})
		}
	}

	return errs
}

// Summary totals a set of ledger entries.
type Summary struct {
	Entries     int
	Deposits    int
	Withdrawals int
	Rejected    int
	Deposited   decimal.Decimal
	Withdrawn   decimal.Decimal
}

// Summarize totals entries.
func Summarize(entries []model.Transaction) Summary {
	var s Summary
	for _, txn := range entries {
		s.Entries++
		switch {
		case txn.Error:
			s.Rejected++
		case txn.Type == model.TypeDeposit:
			s.Deposits++
			s.Deposited = s.Deposited.Add(txn.Amount)
		case txn.Type == model.TypeWithdrawal:
			s.Withdrawals++
			s.Withdrawn = s.Withdrawn.Add(txn.Amount)
		}
	}
	return s
}

// LastBalances returns, per account, the balance carried by its last entry.
// Entries must be in append order.
func LastBalances(entries []model.Transaction) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal)
	for _, txn := range entries {
		out[txn.AccountID] = txn.BalanceAfter
	}
	return out
}
