package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/model"
	"github.com/banksim-dev/banksim/internal/storage/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type fixture struct {
	server *Server
	store  *memory.Store
	log    *memory.Log
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	log := memory.NewLog()
	svc := bank.NewService(store, log)
	for _, acctID := range []int{1, 2} {
		_, err := svc.Open(context.Background(), model.Account{ID: acctID, HolderName: "Holder", Balance: decimal.NewFromInt(100)})
		require.NoError(t, err)
	}
	return fixture{server: NewServer(svc, store, log, zerolog.Nop()), store: store, log: log}
}

func (f fixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var views []AccountView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[0].ID)
	assert.Equal(t, "100.00", views[0].Balance)
	assert.Equal(t, "active", views[0].Status)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodGet, "/api/v1/accounts/2", "")
	require.Equal(t, http.StatusOK, code)
	var view AccountView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 2, view.ID)

	code, env = f.do(t, http.MethodGet, "/api/v1/accounts/99", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "not found")

	code, _ = f.do(t, http.MethodGet, "/api/v1/accounts/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":"25.50"}`)
	require.Equal(t, http.StatusOK, code)
	var txn model.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.Equal(t, model.TypeDeposit, txn.Type)
	assert.Equal(t, "125.50", txn.BalanceAfter.StringFixed(2))
	assert.False(t, txn.Error)

	code, env = f.do(t, http.MethodPost, "/api/v1/accounts/1/withdraw", `{"amount":125.5}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.True(t, txn.BalanceAfter.IsZero())

	assert.Equal(t, 2, f.log.Len())
}

func TestWithdrawRejected(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodPost, "/api/v1/accounts/1/withdraw", `{"amount":"100.01"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "insufficient funds")

	var txn model.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.True(t, txn.Error)
	assert.Equal(t, "100.00", txn.BalanceAfter.StringFixed(2))
	assert.Equal(t, 1, f.log.Len(), "rejection is still recorded")
}

func TestMutateBadInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"negative", "/api/v1/accounts/1/deposit", `{"amount":"-1"}`, http.StatusBadRequest},
		{"not a number", "/api/v1/accounts/1/deposit", `{"amount":"ten"}`, http.StatusBadRequest},
		{"huge exponent", "/api/v1/accounts/1/deposit", `{"amount":1e5000000}`, http.StatusBadRequest},
		{"too many digits", "/api/v1/accounts/1/withdraw", `{"amount":"12345678901234567"}`, http.StatusBadRequest},
		{"missing amount", "/api/v1/accounts/1/deposit", `{}`, http.StatusBadRequest},
		{"bad json", "/api/v1/accounts/1/withdraw", `{`, http.StatusBadRequest},
		{"bad id", "/api/v1/accounts/0/deposit", `{"amount":"1"}`, http.StatusBadRequest},
		{"unknown account", "/api/v1/accounts/42/deposit", `{"amount":"1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
		})
	}
	assert.Equal(t, 0, f.log.Len())
}

func TestLogFailureIs500WithEntry(t *testing.T) {
	f := newFixture(t)
	f.log.OnAppend(func(model.Transaction) error { return errors.New("disk full") })

	code, env := f.do(t, http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":"5"}`)
	require.Equal(t, http.StatusInternalServerError, code)

	var txn model.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.Equal(t, "105.00", txn.BalanceAfter.StringFixed(2))
}

func TestStoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	f.store.OnPut(func(model.Account) error { return errors.New("locked") })

	code, env := f.do(t, http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":"5"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Nil(t, env.Data)
	assert.Equal(t, 0, f.log.Len())
}

func TestTransactions(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/accounts/1/deposit", `{"amount":"1"}`)
	f.do(t, http.MethodPost, "/api/v1/accounts/2/deposit", `{"amount":"2"}`)
	f.do(t, http.MethodPost, "/api/v1/accounts/1/withdraw", `{"amount":"3"}`)

	code, env := f.do(t, http.MethodGet, "/api/v1/accounts/1/transactions", "")
	require.Equal(t, http.StatusOK, code)
	var txns []model.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &txns))
	require.Len(t, txns, 2)
	assert.Equal(t, model.TypeDeposit, txns[0].Type)
	assert.Equal(t, model.TypeWithdrawal, txns[1].Type)

	code, _ = f.do(t, http.MethodGet, "/api/v1/accounts/77/transactions", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTransactionsWithoutHistory(t *testing.T) {
	store := memory.NewStore(model.Account{ID: 1, Balance: decimal.NewFromInt(1)})
	srv := NewServer(bank.NewService(store, memory.NewLog()), store, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/1/transactions", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
