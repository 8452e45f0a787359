package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/ordinal/internal/order"
)

// BlockingStore holds ListOrdered calls until Release, so a test can keep an
// operation in flight while it issues another. When constructed with groups,
// only reads of those groups are held; every other group passes through.
type BlockingStore struct {
	Store

	groups      []string
	entered     chan struct{}
	enteredOnce sync.Once
	release     chan struct{}
	releaseOnce sync.Once
}

// NewBlockingStore wraps inner. With no groups every ListOrdered call blocks.
func NewBlockingStore(inner Store, groups ...string) *BlockingStore {
	return &BlockingStore{
		Store:   inner,
		groups:  groups,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

// ListOrdered blocks until Release or ctx is done if groupID is gated.
func (s *BlockingStore) ListOrdered(ctx context.Context, groupID string) ([]order.Item, error) {
	if !s.gated(groupID) {
		return s.Store.ListOrdered(ctx, groupID)
	}
	s.enteredOnce.Do(func() { close(s.entered) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Store.ListOrdered(ctx, groupID)
}

func (s *BlockingStore) gated(groupID string) bool {
	return len(s.groups) == 0 || slices.Contains(s.groups, groupID)
}

// Entered is closed once the first gated ListOrdered call is waiting.
func (s *BlockingStore) Entered() <-chan struct{} {
	return s.entered
}

// Release unblocks current and future ListOrdered calls.
func (s *BlockingStore) Release() {
	s.releaseOnce.Do(func() { close(s.release) })
}
