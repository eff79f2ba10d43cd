package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/model"
)

const (
	numFields  = 6
	colID      = 0
	colHolder  = 1
	colType    = 2
	colStatus  = 3
	colOpening = 4
	colCreated = 5
)

// Header is the accounts.csv header row.
var Header = []string{"account_id", "holder_name", "account_type", "status", "opening_balance", "created_at"}

// ReadAccounts reads accounts.csv. The opening_balance column becomes the
// account's Balance.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = strconv.Itoa(acct.ID)
	row[colHolder] = acct.HolderName
	row[colType] = string(acct.Type)
	row[colStatus] = string(acct.Status)
	row[colOpening] = acct.Balance.StringFixed(2)
	if !acct.CreatedAt.IsZero() {
		row[colCreated] = acct.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := strconv.Atoi(record[colID])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing account_id %q: %w", record[colID], err)
	}

	opening, err := decimal.NewFromString(record[colOpening])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing opening_balance %q: %w", record[colOpening], err)
	}

	var created time.Time
	if record[colCreated] != "" {
		created, err = time.Parse(time.RFC3339, record[colCreated])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing created_at %q: %w", record[colCreated], err)
		}
	}

	return model.Account{
		ID:         id,
		HolderName: record[colHolder],
		Type:       model.AccountType(record[colType]),
		Status:     model.AccountStatus(record[colStatus]),
		Balance:    opening,
		CreatedAt:  created,
		UpdatedAt:  created,
	}, nil
}
