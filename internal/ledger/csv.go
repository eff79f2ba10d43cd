package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/model"
)

// Header is the CSV header for transactions.csv.
const Header = "txn_id,account_id,date,type,amount,balance_after_transaction,error"

const (
	numFields    = 7
	dateFormat   = time.RFC3339Nano
	colTxnID     = 0
	colAcctID    = 1
	colDate      = 2
	colType      = 3
	colAmount    = 4
	colBalAfter  = 5
	colErrorFlag = 6
)

// ReadTransactions reads every entry from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	// Skip header row.
	var txns []model.Transaction
	for i, rec := range records[1:] {
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes entries to w, including the header.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts an entry to a CSV row. Money is written with
// exactly two decimal places.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, numFields)
	row[colTxnID] = txn.ID
	row[colAcctID] = strconv.Itoa(txn.AccountID)
	row[colDate] = txn.Timestamp.UTC().Format(dateFormat)
	row[colType] = string(txn.Type)
	row[colAmount] = txn.Amount.StringFixed(2)
	row[colBalAfter] = txn.BalanceAfter.StringFixed(2)
	row[colErrorFlag] = strconv.FormatBool(txn.Error)
	return row
}

// UnmarshalTransaction converts a CSV row to an entry.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	accountID, err := strconv.Atoi(record[colAcctID])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing account_id %q: %w", record[colAcctID], err)
	}

	ts, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	typ := model.TransactionType(record[colType])
	if typ != model.TypeDeposit && typ != model.TypeWithdrawal {
		return model.Transaction{}, fmt.Errorf("unknown transaction type %q", record[colType])
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	balance, err := decimal.NewFromString(record[colBalAfter])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing balance_after_transaction %q: %w", record[colBalAfter], err)
	}

	flag, err := strconv.ParseBool(record[colErrorFlag])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing error flag %q: %w", record[colErrorFlag], err)
	}

	return model.Transaction{
		ID:           record[colTxnID],
		AccountID:    accountID,
		Timestamp:    ts,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balance,
		Error:        flag,
	}, nil
}
