package ledger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim-dev/banksim/internal/model"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 123000000, time.UTC)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func entry(id string, acct int, typ model.TransactionType, amount, after string, rejected bool) model.Transaction {
	return model.Transaction{
		ID:           id,
		AccountID:    acct,
		Timestamp:    testTime,
		Type:         typ,
		Amount:       dec(amount),
		BalanceAfter: dec(after),
		Error:        rejected,
	}
}

func TestRoundTrip(t *testing.T) {
	txns := []model.Transaction{
		entry("t1", 1, model.TypeDeposit, "250.00", "1250.00", false),
		entry("t2", 1, model.TypeWithdrawal, "2000.00", "1250.00", true),
		entry("t3", 2, model.TypeWithdrawal, "0.99", "999.01", false),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txns))
	assert.True(t, strings.HasPrefix(buf.String(), "txn_id,"))

	got, err := ReadTransactions(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i := range txns {
		assert.Equal(t, txns[i].ID, got[i].ID)
		assert.Equal(t, txns[i].AccountID, got[i].AccountID)
		assert.True(t, txns[i].Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, txns[i].Type, got[i].Type)
		assert.True(t, txns[i].Amount.Equal(got[i].Amount), "amount mismatch row %d", i)
		assert.True(t, txns[i].BalanceAfter.Equal(got[i].BalanceAfter), "balance mismatch row %d", i)
		assert.Equal(t, txns[i].Error, got[i].Error)
	}
}

func TestMarshalTransaction_Format(t *testing.T) {
	row := MarshalTransaction(entry("t1", 7, model.TypeWithdrawal, "5", "10.5", true))
	assert.Equal(t, []string{"t1", "7", "2025-01-15T10:30:00.123Z", "Withdrawal", "5.00", "10.50", "true"}, row)
}

func TestUnmarshalTransaction_Errors(t *testing.T) {
	good := MarshalTransaction(entry("t1", 1, model.TypeDeposit, "1", "1", false))

	tests := []struct {
		name string
		col  int
		val  string
		want string
	}{
		{"account", colAcctID, "abc", "parsing account_id"},
		{"date", colDate, "yesterday", "parsing date"},
		{"type", colType, "Transfer", "unknown transaction type"},
		{"amount", colAmount, "1.2.3", "parsing amount"},
		{"balance", colBalAfter, "x", "parsing balance_after_transaction"},
		{"flag", colErrorFlag, "maybe", "parsing error flag"},
	}
	for _, tt := range tests {
		rec := append([]string(nil), good...)
		rec[tt.col] = tt.val
		_, err := UnmarshalTransaction(rec)
		require.Error(t, err, tt.name)
		assert.Contains(t, err.Error(), tt.want, tt.name)
	}

	_, err := UnmarshalTransaction([]string{"one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 fields")
}

func TestReadTransactions_HeaderOnly(t *testing.T) {
	got, err := ReadTransactions(strings.NewReader(Header + "\n"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadTransactions_BadRow(t *testing.T) {
	input := Header + "\n" + "t1,1,2025-01-15T10:30:00Z,Deposit,1.00,1.00,false\n" + "t2,x,2025-01-15T10:30:00Z,Deposit,1.00,2.00,false\n"
	_, err := ReadTransactions(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}
