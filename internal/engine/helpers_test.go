package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/ordinal/internal/order"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(store PositionStore, opts ...CoordinatorOption) *Coordinator {
	base := []CoordinatorOption{
		WithLogger(discardLogger()),
		WithOpIDGenerator(NewFixedGenerator()),
	}
	return NewCoordinator(store, append(base, opts...)...)
}

type recordingCache struct {
	mu     sync.Mutex
	groups []string
}

func (c *recordingCache) Invalidate(_ context.Context, groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = append(c.groups, groupID)
}

func (c *recordingCache) invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.groups...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (n *recordingNotifier) Report(_ context.Context, _ string, o Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, o)
}

func (n *recordingNotifier) kinds() []Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Kind, len(n.outcomes))
	for i, o := range n.outcomes {
		out[i] = o.Kind
	}
	return out
}

// brokenStore fails reads with listErr.
type brokenStore struct {
	listErr error
	writes  int
}

func (s *brokenStore) SetPosition(context.Context, string, int) error {
	s.writes++
	return nil
}

func (s *brokenStore) ListOrdered(context.Context, string) ([]order.Item, error) {
	return nil, s.listErr
}

// maxStore reports a fixed live maximum, or an error.
type maxStore struct {
	PositionStore
	highest int
	err     error
}

func (s maxStore) MaxPosition(context.Context, string) (int, error) {
	return s.highest, s.err
}

type errGuard struct{ err error }

func (g errGuard) TryAcquire(context.Context, string) (func(), bool, error) {
	return nil, false, g.err
}
