package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/model"
	"github.com/banksim-dev/banksim/internal/storage/memory"
)

type appendOnly struct {
	err   error
	count int
}

func (a *appendOnly) Append(context.Context, model.Transaction) error {
	a.count++
	return a.err
}

func TestTee_AppendsToAll(t *testing.T) {
	mem := memory.NewLog()
	other := &appendOnly{}
	tee := NewTee(mem, nil, other)

	require.NoError(t, tee.Append(context.Background(), entry("t1", 1, model.TypeDeposit, "1", "1", false)))
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, 1, other.count)
}

func TestTee_ContinuesPastFailure(t *testing.T) {
	boom := errors.New("broker down")
	failing := &appendOnly{err: boom}
	mem := memory.NewLog()
	tee := NewTee(failing, mem)

	err := tee.Append(context.Background(), entry("t1", 1, model.TypeDeposit, "1", "1", false))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mem.Len(), "later sinks still receive the entry")
}

func TestTee_History(t *testing.T) {
	mem := memory.NewLog()
	tee := NewTee(&appendOnly{}, mem)
	require.NoError(t, tee.Append(context.Background(), entry("t1", 4, model.TypeDeposit, "1", "1", false)))

	hist, err := tee.History(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	_, err = NewTee(&appendOnly{}).History(context.Background(), 4)
	assert.ErrorIs(t, err, bank.ErrHistoryUnsupported)
}
