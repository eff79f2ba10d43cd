package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of balance mutation attempted.
type TransactionType string

const (
	TypeDeposit    TransactionType = "Deposit"
	TypeWithdrawal TransactionType = "Withdrawal"
)

// Transaction is one ledger entry: an attempted deposit or withdrawal,
// applied or not. BalanceAfter is the balance once the attempt finished,
// which for a rejected withdrawal is the unchanged balance.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    int             `json:"account_id"`
	Timestamp    time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after_transaction"`
	Error        bool            `json:"error"`
}

// Applied reports whether the attempt changed the balance (or was a
// deposit of zero).
func (t Transaction) Applied() bool {
	return !t.Error
}

// Delta returns the signed change the entry made to the account balance.
// Rejected entries contribute zero.
func (t Transaction) Delta() decimal.Decimal {
	if t.Error {
		return decimal.Zero
	}
	if t.Type == TypeWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}
