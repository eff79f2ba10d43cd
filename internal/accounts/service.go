package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/model"
)

// ErrDuplicateID is returned when a seed file lists an account ID twice.
var ErrDuplicateID = errors.New("duplicate account ID")

// RelPath is the seed file location relative to a project root.
var RelPath = filepath.Join("accounts", "accounts.csv")

// Service holds the seeded accounts and hands out IDs for new ones.
type Service struct {
	accounts []model.Account
	seq      *id.Sequence
}

// NewService creates a Service from a slice of accounts. New accounts get
// IDs above the highest one given.
func NewService(accounts []model.Account) *Service {
	seq := id.NewSequence(1)
	for _, a := range accounts {
		seq.Observe(a.ID)
	}
	return &Service{accounts: accounts, seq: seq}
}

// Load reads accounts/accounts.csv from a project root and returns a Service.
func Load(root string) (*Service, error) {
	path := filepath.Join(root, RelPath)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	if err := validate(accts); err != nil {
		return nil, err
	}
	return NewService(accts), nil
}

func validate(accts []model.Account) error {
	seen := make(map[int]bool, len(accts))
	for _, a := range accts {
		if a.ID <= 0 {
			return fmt.Errorf("account ID %d must be positive", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("account %d: %w", a.ID, ErrDuplicateID)
		}
		if a.Balance.IsNegative() {
			return fmt.Errorf("account %d: negative opening balance %s", a.ID, a.Balance)
		}
		seen[a.ID] = true
	}
	return nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Add appends a new active account with the next free ID. An empty holder
// name defaults to "Customer <id>". The caller persists it with Save.
func (s *Service) Add(holder string, typ model.AccountType, opening decimal.Decimal, now time.Time) model.Account {
	acctID := s.seq.Next()
	if holder == "" {
		holder = fmt.Sprintf("Customer %d", acctID)
	}
	if typ == "" {
		typ = model.AccountTypeChecking
	}
	now = now.UTC().Truncate(time.Second)
	acct := model.Account{
		ID:         acctID,
		HolderName: holder,
		Type:       typ,
		Status:     model.StatusActive,
		Balance:    opening.Round(2),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.accounts = append(s.accounts, acct)
	return acct
}

// Active returns the IDs of active accounts in file order. Customers are
// only assigned to these.
func (s *Service) Active() []int {
	var ids []int
	for _, a := range s.accounts {
		if a.Status == model.StatusActive || a.Status == "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Save writes the accounts to accounts/accounts.csv.
func (s *Service) Save(root string) error {
	dir := filepath.Join(root, filepath.Dir(RelPath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(filepath.Join(root, RelPath))
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return nil
}
