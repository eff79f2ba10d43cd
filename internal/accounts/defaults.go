package accounts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/model"
)

var holderTypes = []model.AccountType{
	model.AccountTypeChecking,
	model.AccountTypeSavings,
	model.AccountTypeBusiness,
}

// DefaultAccounts returns n active accounts, each opened with the same
// balance. IDs come from seq.
func DefaultAccounts(n int, opening decimal.Decimal, seq *id.Sequence, now time.Time) []model.Account {
	accts := make([]model.Account, 0, n)
	for i := range n {
		acctID := seq.Next()
		accts = append(accts, model.Account{
			ID:         acctID,
			HolderName: fmt.Sprintf("Customer %d", acctID),
			Type:       holderTypes[i%len(holderTypes)],
			Status:     model.StatusActive,
			Balance:    opening.Round(2),
			CreatedAt:  now.UTC().Truncate(time.Second),
			UpdatedAt:  now.UTC().Truncate(time.Second),
		})
	}
	return accts
}
