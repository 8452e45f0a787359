package engine

import (
	"context"
	"sync"
)

// LocalGuard is an in-process Guard. Two coordinators sharing a LocalGuard
// exclude each other; coordinators in different processes need a shared
// backend such as lock.RedisGuard.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGuard returns an empty guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

// TryAcquire implements Guard. It never returns an error.
func (g *LocalGuard) TryAcquire(_ context.Context, groupID string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[groupID]; busy {
		return nil, false, nil
	}
	g.held[groupID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, groupID)
			g.mu.Unlock()
		})
	}
	return release, true, nil
}

// Held reports whether groupID is currently held.
func (g *LocalGuard) Held(groupID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[groupID]
	return busy
}
