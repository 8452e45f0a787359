package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/ordinal/internal/order"
)

// ErrInjected is returned by a RecordingStore write armed with FailNth.
var ErrInjected = errors.New("injected write failure")

// Store is the subset of a position store RecordingStore wraps.
type Store interface {
	SetPosition(ctx context.Context, itemID string, position int) error
	ListOrdered(ctx context.Context, groupID string) ([]order.Item, error)
}

// Write is one recorded SetPosition call.
type Write struct {
	Seq      int64
	ItemID   string
	Position int
	Err      error
}

// RecordingStore wraps a Store, records every SetPosition in call order and
// can fail a chosen write.
type RecordingStore struct {
	inner Store
	clock *DeterministicClock

	mu      sync.Mutex
	writes  []Write
	failIn  int
	failErr error
}

// NewRecordingStore wraps inner. A nil clock gets a fresh one.
func NewRecordingStore(inner Store, clock *DeterministicClock) *RecordingStore {
	if clock == nil {
		clock = NewDeterministicClock()
	}
	return &RecordingStore{inner: inner, clock: clock}
}

// FailNth makes the nth SetPosition from now fail with err (ErrInjected if
// nil), without reaching the wrapped store. n < 1 disarms.
func (s *RecordingStore) FailNth(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.failIn = max(n, 0)
	s.failErr = err
}

// SetPosition implements Store.
func (s *RecordingStore) SetPosition(ctx context.Context, itemID string, position int) error {
	s.mu.Lock()
	var injected error
	if s.failIn > 0 {
		s.failIn--
		if s.failIn == 0 {
			injected = fmt.Errorf("set position %s=%d: %w", itemID, position, s.failErr)
		}
	}
	s.mu.Unlock()

	err := injected
	if err == nil {
		err = s.inner.SetPosition(ctx, itemID, position)
	}

	s.mu.Lock()
	s.writes = append(s.writes, Write{Seq: s.clock.Next(), ItemID: itemID, Position: position, Err: err})
	s.mu.Unlock()
	return err
}

// ListOrdered implements Store.
func (s *RecordingStore) ListOrdered(ctx context.Context, groupID string) ([]order.Item, error) {
	return s.inner.ListOrdered(ctx, groupID)
}

// MaxPosition delegates when the wrapped store supports it and otherwise
// derives the value from ListOrdered.
func (s *RecordingStore) MaxPosition(ctx context.Context, groupID string) (int, error) {
	if mp, ok := s.inner.(interface {
		MaxPosition(context.Context, string) (int, error)
	}); ok {
		return mp.MaxPosition(ctx, groupID)
	}
	items, err := s.inner.ListOrdered(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return order.MaxPosition(items), nil
}

// Writes returns a copy of the recorded writes.
func (s *RecordingStore) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}

// Succeeded counts recorded writes that did not fail.
func (s *RecordingStore) Succeeded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w.Err == nil {
			n++
		}
	}
	return n
}

// Reset forgets recorded writes, disarms failure injection and rewinds the
// clock, so a re-run records the same seq values.
func (s *RecordingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
	s.failIn = 0
	s.clock.Reset()
}
