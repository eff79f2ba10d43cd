package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionDelta(t *testing.T) {
	tests := []struct {
		name string
		txn  Transaction
		want string
	}{
		{"deposit", Transaction{Type: TypeDeposit, Amount: decimal.RequireFromString("12.50")}, "12.5"},
		{"withdrawal", Transaction{Type: TypeWithdrawal, Amount: decimal.RequireFromString("3.25")}, "-3.25"},
		{"rejected withdrawal", Transaction{Type: TypeWithdrawal, Amount: decimal.RequireFromString("99.00"), Error: true}, "0"},
		{"zero deposit", Transaction{Type: TypeDeposit, Amount: decimal.Zero}, "0"},
	}
	for _, tt := range tests {
		got := tt.txn.Delta()
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s: Delta() = %s, want %s", tt.name, got, tt.want)
	}
}

func TestTransactionApplied(t *testing.T) {
	assert.True(t, Transaction{Type: TypeDeposit}.Applied())
	assert.False(t, Transaction{Type: TypeWithdrawal, Error: true}.Applied())
}
