// Package eventlog is the material and event log store. Every physical
// change the cell observes is appended here as an immutable LogEntry, and
// material identities, queue positions, and pending loads live alongside
// the log so they can change in the same transaction as their log entries.
package eventlog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrInvariant marks a violated store invariant. The operation is
	// aborted and nothing is written.
	ErrInvariant = errors.New("invariant violation")

	// ErrUnknownMaterial is returned when an event references a material id
	// that was never allocated.
	ErrUnknownMaterial = fmt.Errorf("%w: unknown material", ErrInvariant)

	// ErrProcessDecreased is returned when an event would move a material
	// back to an earlier process than its log already shows.
	ErrProcessDecreased = fmt.Errorf("%w: process decreased", ErrInvariant)

	// ErrQueueGap is returned when a queue's positions are no longer dense.
	ErrQueueGap = fmt.Errorf("%w: queue positions not dense", ErrInvariant)

	// ErrMaterialNotFound is returned by lookups of a missing material.
	ErrMaterialNotFound = errors.New("material not found")
)

// Store wraps a GORM handle. All writes go through one gate so that log
// counters are assigned in commit order.
type Store struct {
	db   *gorm.DB
	gate *sync.Mutex
	inTx bool
	now  func() time.Time
}

// New returns a Store over db. The tables must already be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db, gate: &sync.Mutex{}, now: time.Now}
}

// SetClock overrides the clock used for entries recorded without a time.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// DB returns the underlying handle. Inside Transaction it is the tx handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn atomically under the store gate. The Store passed to
// fn is bound to the transaction; nested calls reuse it.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.gate.Lock()
	defer s.gate.Unlock()
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, gate: s.gate, inTx: true, now: s.now})
	})
}

func (s *Store) timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}
