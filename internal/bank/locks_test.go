package bank

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/banksim-dev/banksim/internal/model"
)

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := k.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on account 2 blocked behind account 1")
	}
}

func TestKeyedMutex_SameKeySerializes(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, counter)
}

func TestKeyedMutex_SameKeyWaits(t *testing.T) {
	var k keyedMutex
	unlock := k.Lock(3)

	acquired := make(chan struct{})
	go func() {
		u := k.Lock(3)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var k keyedMutex
	unlock := k.Lock(1)
	assert.Equal(t, 1, k.len())

	waiting := make(chan struct{})
	go func() {
		close(waiting)
		u := k.Lock(1)
		u()
	}()
	<-waiting
	unlock()

	assert.Eventually(t, func() bool { return k.len() == 0 }, time.Second, time.Millisecond)
}

type emptyStore struct{}

func (emptyStore) Get(_ context.Context, id int) (model.Account, error) {
	return model.Account{}, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
}

func (emptyStore) Put(context.Context, model.Account) error { return nil }

type discardLog struct{}

func (discardLog) Append(context.Context, model.Transaction) error { return nil }

func TestService_UnknownAccountsLeaveNoLocks(t *testing.T) {
	svc := NewService(emptyStore{}, discardLog{})

	var wg sync.WaitGroup
	for i := range 1000 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Deposit(context.Background(), i+1, decimal.NewFromInt(1))
			assert.ErrorIs(t, err, ErrAccountNotFound)
			_, err = svc.Withdraw(context.Background(), i+1, decimal.NewFromInt(1))
			assert.ErrorIs(t, err, ErrAccountNotFound)
		}()
	}
	wg.Wait()

	assert.Zero(t, svc.locks.len())
}
