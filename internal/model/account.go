package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies customer accounts.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeBusiness AccountType = "business"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
	StatusClosed   AccountStatus = "closed"
)

// Account is a point-in-time copy of a customer account. Stores hand out
// copies, so mutating an Account value never changes stored state.
type Account struct {
	ID         int
	HolderName string
	Type       AccountType
	Status     AccountStatus
	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
