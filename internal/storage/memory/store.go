// Package memory provides in-process implementations of the account store
// and transaction log.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/model"
)

// Store is a concurrency-safe in-memory account store.
type Store struct {
	mu      sync.RWMutex
	byID    map[int]model.Account
	putHook func(model.Account) error
	puts    int
}

// NewStore creates a Store holding the given accounts.
func NewStore(accounts ...model.Account) *Store {
	byID := make(map[int]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Store{byID: byID}
}

// Get returns a copy of the account.
func (s *Store) Get(ctx context.Context, id int) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %d: %w", id, bank.ErrAccountNotFound)
	}
	return a, nil
}

// Put stores the account, replacing any previous version.
func (s *Store) Put(ctx context.Context, acct model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putHook != nil {
		if err := s.putHook(acct); err != nil {
			return err
		}
	}
	s.byID[acct.ID] = acct
	s.puts++
	return nil
}

// List returns all accounts ordered by ID.
func (s *Store) List(ctx context.Context) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Account, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Puts returns how many writes succeeded.
func (s *Store) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// OnPut installs a hook run before every write; a non-nil error fails the
// write and leaves the stored account unchanged. Used to inject faults.
func (s *Store) OnPut(hook func(model.Account) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putHook = hook
}
