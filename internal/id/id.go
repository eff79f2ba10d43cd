package id

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Sequence hands out increasing account IDs. It is owned by whoever builds
// accounts and passed explicitly; there is no package-level counter.
type Sequence struct {
	last atomic.Int64
}

// NewSequence returns a Sequence whose first Next call yields start.
func NewSequence(start int) *Sequence {
	s := &Sequence{}
	s.last.Store(int64(start) - 1)
	return s
}

// Next returns the next ID. Safe for concurrent use.
func (s *Sequence) Next() int {
	return int(s.last.Add(1))
}

// Observe advances the sequence past id, so IDs loaded from disk are never
// handed out again.
func (s *Sequence) Observe(id int) {
	for {
		cur := s.last.Load()
		if int64(id) <= cur {
			return
		}
		if s.last.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}

// NewTransactionID returns a random ledger entry ID.
func NewTransactionID() string {
	return uuid.NewString()
}

// NewRunID returns a short ID for one simulation run, like "run-1a2b3c4d".
func NewRunID() string {
	return "run-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ParseAccountID parses a decimal account ID as given on a command line or
// URL path.
func ParseAccountID(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid account ID %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid account ID %q: must be positive", s)
	}
	return n, nil
}
