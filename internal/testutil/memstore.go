package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/ordinal/internal/order"
)

// MemoryStore is an in-memory position store that enforces
// UNIQUE(group, position) on every single write, like the SQL stores do.
//
// Thread-safety: safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]order.Item
	writes int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]order.Item)}
}

// Seed appends ids to groupID in order, after the group's current maximum.
// Panics on duplicate IDs.
func (s *MemoryStore) Seed(groupID string, ids ...string) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.maxLocked(groupID) + 1
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			panic(fmt.Sprintf("MemoryStore.Seed: duplicate item %q", id))
		}
		s.items[id] = order.Item{ID: id, GroupID: groupID, Position: next}
		next++
	}
	return s
}

// Put inserts item at its own position, e.g. to build gapped groups.
func (s *MemoryStore) Put(item order.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("put %s: item exists", item.ID)
	}
	if err := s.checkSlotLocked(item.GroupID, item.ID, item.Position); err != nil {
		return fmt.Errorf("put %s: %w", item.ID, err)
	}
	s.items[item.ID] = item
	return nil
}

// Delete removes an item, leaving a gap in its group.
func (s *MemoryStore) Delete(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[itemID]; !ok {
		return fmt.Errorf("delete %s: %w", itemID, order.ErrItemNotFound)
	}
	delete(s.items, itemID)
	return nil
}

// SetPosition moves itemID to position.
func (s *MemoryStore) SetPosition(_ context.Context, itemID string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("set position %s: %w", itemID, order.ErrItemNotFound)
	}
	if err := s.checkSlotLocked(it.GroupID, itemID, position); err != nil {
		return fmt.Errorf("set position %s=%d: %w", itemID, position, err)
	}
	it.Position = position
	s.items[itemID] = it
	s.writes++
	return nil
}

// ListOrdered returns the group ascending by position.
func (s *MemoryStore) ListOrdered(_ context.Context, groupID string) ([]order.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]order.Item, 0)
	for _, it := range s.items {
		if it.GroupID == groupID {
			items = append(items, it)
		}
	}
	order.SortByPosition(items)
	return items, nil
}

// MaxPosition returns the highest position in the group, 0 if empty.
func (s *MemoryStore) MaxPosition(_ context.Context, groupID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLocked(groupID), nil
}

// Writes returns the number of successful SetPosition calls.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Order returns the IDs of the group ascending by position.
func (s *MemoryStore) Order(groupID string) []string {
	items, _ := s.ListOrdered(context.Background(), groupID)
	return order.IDs(items)
}

func (s *MemoryStore) checkSlotLocked(groupID, itemID string, position int) error {
	if position < 1 {
		return fmt.Errorf("position %d out of range", position)
	}
	for _, other := range s.items {
		if other.GroupID == groupID && other.ID != itemID && other.Position == position {
			return fmt.Errorf("%w: held by %s", order.ErrConstraintViolation, other.ID)
		}
	}
	return nil
}

func (s *MemoryStore) maxLocked(groupID string) int {
	highest := 0
	for _, it := range s.items {
		if it.GroupID == groupID && it.Position > highest {
			highest = it.Position
		}
	}
	return highest
}
