package commands_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim-dev/banksim/internal/ledger"
	"github.com/banksim-dev/banksim/internal/model"
	"github.com/banksim-dev/banksim/internal/runlog"
)

func initProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out, err := runBanksim(t, "init", dir)
	require.NoError(t, err, out)
	return dir
}

func simulate(t *testing.T, dir string, env []string, extra ...string) string {
	t.Helper()
	args := append([]string{"simulate", "--dir", dir, "--max-think-time", "0s"}, extra...)
	out, err := runBanksimEnv(t, env, args...)
	require.NoError(t, err, out)
	return out
}

func openingBalances(t *testing.T, dir string) map[int]decimal.Decimal {
	t.Helper()
	out := make(map[int]decimal.Decimal)
	for _, a := range readSeed(t, dir) {
		out[a.ID] = a.Balance
	}
	return out
}

func TestSimulate_MemoryDriver(t *testing.T) {
	dir := initProject(t)
	out := simulate(t, dir, nil, "--workers", "8", "--iterations", "20", "--seed", "7")

	assert.Contains(t, out, "8 workers x 20 iterations on 5 accounts (seed 7")
	assert.Contains(t, out, "Totals: 160 attempts")
	assert.Contains(t, out, "Audit: ok (160 entries)")

	entries, err := ledger.ReadFile(filepath.Join(dir, "ledger", "transactions.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 160)
	assert.Empty(t, ledger.Audit(openingBalances(t, dir), ledger.LastBalances(entries), entries))

	runs, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 160, runs[0].Attempts)
	assert.Equal(t, 160, runs[0].Applied+runs[0].Rejected)
	assert.True(t, runs[0].Clean())
}

func TestSimulate_ResumesFromLedger(t *testing.T) {
	dir := initProject(t)
	simulate(t, dir, nil, "--iterations", "6", "--seed", "1")
	out := simulate(t, dir, nil, "--iterations", "6", "--seed", "2")
	assert.Contains(t, out, "Audit: ok (30 entries)")

	entries, err := ledger.ReadFile(filepath.Join(dir, "ledger", "transactions.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 60)
	assert.Empty(t, ledger.Audit(openingBalances(t, dir), nil, entries), "second run continues the first run's balances")

	balOut, err := runBanksim(t, "balance", "3", "--dir", dir)
	require.NoError(t, err, balOut)
	assert.Contains(t, balOut, ledger.LastBalances(entries)[3].StringFixed(2))
}

func TestSimulate_SQLiteDriver(t *testing.T) {
	dir := initProject(t)
	env := []string{"BANKSIM_STORAGE_DRIVER=sqlite"}
	simulate(t, dir, env, "--iterations", "4", "--seed", "11")
	out := simulate(t, dir, env, "--iterations", "4", "--seed", "12")
	assert.Contains(t, out, "Audit: ok (20 entries)")

	histOut, err := runBanksimEnv(t, env, "history", "1", "--json", "--log-level", "error", "--dir", dir)
	require.NoError(t, err, histOut)
	var txns []model.Transaction
	require.NoError(t, json.Unmarshal([]byte(histOut), &txns))
	require.Len(t, txns, 8, "one worker per account, two runs of four")

	balOut, err := runBanksimEnv(t, env, "balance", "1", "--dir", dir)
	require.NoError(t, err, balOut)
	assert.Contains(t, balOut, txns[len(txns)-1].BalanceAfter.StringFixed(2))

	runs, err := runlog.Read(dir)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSimulate_RequiresProject(t *testing.T) {
	out, err := runBanksim(t, "simulate", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "banksim init")
}

func TestSimulate_InvalidConfig(t *testing.T) {
	dir := initProject(t)
	out, err := runBanksim(t, "simulate", "--dir", dir, "--workers", "0")
	require.Error(t, err)
	assert.Contains(t, out, "simulation.workers")
}

func TestBalance(t *testing.T) {
	dir := initProject(t)

	out, err := runBanksim(t, "balance", "2", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Account 2")
	assert.Contains(t, out, "1000.00")

	out, err = runBanksim(t, "balance", "42", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "account not found")

	_, err = runBanksim(t, "balance", "x", "--dir", dir)
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	dir := initProject(t)

	out, err := runBanksim(t, "history", "1", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No transactions for account 1.")

	simulate(t, dir, nil, "--iterations", "3", "--seed", "5")
	out, err = runBanksim(t, "history", "1", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "BALANCE")
	assert.Contains(t, out, "3 entries: ")
}

func TestHistory_CSV(t *testing.T) {
	dir := initProject(t)
	simulate(t, dir, nil, "--iterations", "4", "--seed", "9")

	out, err := runBanksim(t, "history", "2", "--csv", "--log-level", "error", "--dir", dir)
	require.NoError(t, err, out)
	assert.True(t, strings.HasPrefix(out, ledger.Header+"\n"))

	txns, err := ledger.ReadTransactions(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, txns, 4)
	for _, txn := range txns {
		assert.Equal(t, 2, txn.AccountID)
	}

	out, err = runBanksim(t, "history", "2", "--csv", "--json", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "none of the others can be")
}

func TestAudit_MemoryDriver(t *testing.T) {
	dir := initProject(t)
	simulate(t, dir, nil, "--iterations", "5", "--seed", "3")
	simulate(t, dir, nil, "--iterations", "5", "--seed", "4")

	out, err := runBanksim(t, "audit", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Audit: ok (50 entries)")
}

func TestAudit_SQLiteDriver(t *testing.T) {
	dir := initProject(t)
	env := []string{"BANKSIM_STORAGE_DRIVER=sqlite"}
	simulate(t, dir, env, "--iterations", "3", "--seed", "21")
	simulate(t, dir, env, "--iterations", "3", "--seed", "22")

	out, err := runBanksimEnv(t, env, "audit", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Audit: ok (30 entries)")
}

func TestAudit_DetectsTamperedLedger(t *testing.T) {
	dir := initProject(t)
	simulate(t, dir, nil, "--iterations", "3", "--seed", "8")

	path := filepath.Join(dir, "ledger", "transactions.csv")
	entries, err := ledger.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	entries[0].BalanceAfter = entries[0].BalanceAfter.Add(decimal.NewFromInt(1))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, ledger.WriteTransactions(f, entries))
	require.NoError(t, f.Close())

	out, err := runBanksim(t, "audit", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "problems")
	assert.Contains(t, out, entries[0].ID)
}

func TestAudit_NoLedger(t *testing.T) {
	dir := initProject(t)
	cfgPath := filepath.Join(dir, "banksim.yaml")
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "csv_path: ledger/transactions.csv")
	data = []byte(strings.Replace(string(data), "csv_path: ledger/transactions.csv", `csv_path: ""`, 1))
	require.NoError(t, os.WriteFile(cfgPath, data, 0o644))

	out, err := runBanksim(t, "audit", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "no ledger is kept")
}

func TestWatch_RequiresKafka(t *testing.T) {
	dir := initProject(t)
	out, err := runBanksim(t, "watch", "--dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "ledger.kafka.brokers")
}

func TestRuns(t *testing.T) {
	dir := initProject(t)

	out, err := runBanksim(t, "runs", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	simulate(t, dir, nil, "--iterations", "2")
	runsList, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, runsList, 1)

	out, err = runBanksim(t, "runs", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, runsList[0].RunID)
}
