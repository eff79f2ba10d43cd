// Package sqlite stores accounts and the transaction log in one SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/model"
	"github.com/banksim-dev/banksim/internal/storage/sqlite/migrations"
)

// Store is a SQLite-backed account store and transaction log.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection serializes writers, so concurrent workers never hit
	// SQLITE_BUSY. Per-account ordering is handled by bank.Service.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the account with id.
func (s *Store) Get(ctx context.Context, id int) (model.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, holder_name, account_type, status, balance, created_at, updated_at
FROM accounts
WHERE id = ?
`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %d: %w", id, bank.ErrAccountNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return acct, nil
}

// Put inserts or replaces the account.
func (s *Store) Put(ctx context.Context, acct model.Account) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (id, holder_name, account_type, status, balance, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	holder_name = excluded.holder_name,
	account_type = excluded.account_type,
	status = excluded.status,
	balance = excluded.balance,
	updated_at = excluded.updated_at
`,
		acct.ID,
		acct.HolderName,
		string(acct.Type),
		string(acct.Status),
		acct.Balance.StringFixed(2),
		acct.CreatedAt.UTC().UnixMilli(),
		acct.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put account %d: %w", acct.ID, err)
	}
	return nil
}

// List returns all accounts ordered by ID.
func (s *Store) List(ctx context.Context) ([]model.Account, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, holder_name, account_type, status, balance, created_at, updated_at
FROM accounts
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accts []model.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accts = append(accts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accts, nil
}

// Append records a ledger entry.
func (s *Store) Append(ctx context.Context, txn model.Transaction) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO transactions (id, account_id, created_at, type, amount, balance_after, error)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		txn.ID,
		txn.AccountID,
		txn.Timestamp.UTC().UnixMilli(),
		string(txn.Type),
		txn.Amount.StringFixed(2),
		txn.BalanceAfter.StringFixed(2),
		txn.Error,
	)
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", txn.ID, err)
	}
	return nil
}

// History returns the account's entries in append order.
func (s *Store) History(ctx context.Context, accountID int) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `
SELECT id, account_id, created_at, type, amount, balance_after, error
FROM transactions
WHERE account_id = ?
ORDER BY seq
`, accountID)
}

// Entries returns every entry in append order.
func (s *Store) Entries(ctx context.Context) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `
SELECT id, account_id, created_at, type, amount, balance_after, error
FROM transactions
ORDER BY seq
`)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var (
			txn       model.Transaction
			createdAt int64
			typ       string
			amount    string
			balance   string
		)
		if err := rows.Scan(&txn.ID, &txn.AccountID, &createdAt, &typ, &amount, &balance, &txn.Error); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Timestamp = time.UnixMilli(createdAt).UTC()
		txn.Type = model.TransactionType(typ)
		if txn.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q of %s: %w", amount, txn.ID, err)
		}
		if txn.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parsing balance %q of %s: %w", balance, txn.ID, err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		acct      model.Account
		typ       string
		status    string
		balance   string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&acct.ID, &acct.HolderName, &typ, &status, &balance, &createdAt, &updatedAt); err != nil {
		return model.Account{}, err
	}
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing balance %q: %w", balance, err)
	}
	acct.Type = model.AccountType(typ)
	acct.Status = model.AccountStatus(status)
	acct.Balance = bal
	acct.CreatedAt = time.UnixMilli(createdAt).UTC()
	acct.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return acct, nil
}
