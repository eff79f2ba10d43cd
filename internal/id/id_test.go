package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceNext(t *testing.T) {
	seq := NewSequence(1)
	assert.Equal(t, 1, seq.Next())
	assert.Equal(t, 2, seq.Next())
	assert.Equal(t, 3, seq.Next())
}

func TestSequenceObserve(t *testing.T) {
	seq := NewSequence(1)
	seq.Observe(41)
	assert.Equal(t, 42, seq.Next())

	// Observing an older ID does not move the sequence back.
	seq.Observe(7)
	assert.Equal(t, 43, seq.Next())
}

func TestSequenceConcurrent(t *testing.T) {
	seq := NewSequence(100)
	var mu sync.Mutex
	seen := make(map[int]bool)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				n := seq.Next()
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000, "every ID handed out exactly once")
	for i := 100; i < 1100; i++ {
		assert.True(t, seen[i], "missing ID %d", i)
	}
}

func TestNewTransactionID(t *testing.T) {
	a := NewTransactionID()
	b := NewTransactionID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestNewRunID(t *testing.T) {
	got := NewRunID()
	assert.True(t, strings.HasPrefix(got, "run-"))
	assert.Len(t, got, 12)
}

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"1", 1},
		{" 42 ", 42},
		{"1010", 1010},
	}
	for _, tt := range tests {
		got, err := ParseAccountID(tt.input)
		require.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseAccountID_Errors(t *testing.T) {
	for _, input := range []string{"", "abc", "0", "-3", "1.5"} {
		_, err := ParseAccountID(input)
		assert.Error(t, err, "expected error for input: %q", input)
	}
}
