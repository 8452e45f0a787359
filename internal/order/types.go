package order

import (
	"fmt"
	"sort"
)

// Item is one positioned record. Title and Published are domain fields the
// engine carries but never writes.
type Item struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Position  int    `json:"position"`
	Title     string `json:"title,omitempty"`
	Published bool   `json:"published,omitempty"`
}

// Move relocates the element at FromIndex to ToIndex, shifting the items in
// between by one slot. Indices are zero-based offsets into the ordered group.
type Move struct {
	FromIndex int `json:"from_index"`
	ToIndex   int `json:"to_index"`
}

func (m Move) String() string {
	return fmt.Sprintf("%d→%d", m.FromIndex, m.ToIndex)
}

// Change is a single position update produced by the planner.
type Change struct {
	ItemID string `json:"item_id"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

// Plan is the minimal change set for one reconciliation of one group.
type Plan struct {
	GroupID string
	Size    int
	Changes []Change
}

// Empty reports whether applying the plan would write nothing.
func (p Plan) Empty() bool {
	return len(p.Changes) == 0
}

// Apply returns a copy of current with the plan's positions applied, sorted
// by position. Items not named in the plan keep their position.
func (p Plan) Apply(current []Item) []Item {
	targets := make(map[string]int, len(p.Changes))
	for _, c := range p.Changes {
		targets[c.ItemID] = c.To
	}
	out := make([]Item, len(current))
	for i, it := range current {
		if to, ok := targets[it.ID]; ok {
			it.Position = to
		}
		out[i] = it
	}
	SortByPosition(out)
	return out
}

// SortByPosition sorts items ascending by position, ties broken by ID so the
// result is deterministic even for inconsistent input.
func SortByPosition(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}

// IsDense reports whether the positions of items are exactly 1..N with no
// duplicates. Order of the input slice does not matter.
func IsDense(items []Item) bool {
	seen := make([]bool, len(items)+1)
	for _, it := range items {
		if it.Position < 1 || it.Position > len(items) || seen[it.Position] {
			return false
		}
		seen[it.Position] = true
	}
	return true
}

// IDs returns the item IDs in slice order.
func IDs(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
