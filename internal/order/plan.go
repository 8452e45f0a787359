package order

import "fmt"

// PlanMove computes the changes that move the element at mv.FromIndex to
// mv.ToIndex. current is the whole group; it is sorted by position before
// indices are resolved.
func PlanMove(current []Item, mv Move) (Plan, error) {
	ordered, groupID, err := snapshot(current)
	if err != nil {
		return Plan{}, err
	}
	n := len(ordered)
	if mv.FromIndex < 0 || mv.FromIndex >= n || mv.ToIndex < 0 || mv.ToIndex >= n {
		return Plan{}, fmt.Errorf("%w: move %s in group of %d", ErrInvalidMove, mv, n)
	}

	target := make([]Item, 0, n)
	moved := ordered[mv.FromIndex]
	for i, it := range ordered {
		if i == mv.FromIndex {
			continue
		}
		target = append(target, it)
	}
	target = append(target, Item{})
	copy(target[mv.ToIndex+1:], target[mv.ToIndex:])
	target[mv.ToIndex] = moved

	return diff(groupID, target), nil
}

// PlanPermutation computes the changes that reorder the group into ids.
// ids must name every item of the group exactly once.
func PlanPermutation(current []Item, ids []string) (Plan, error) {
	ordered, groupID, err := snapshot(current)
	if err != nil {
		return Plan{}, err
	}
	if len(ids) != len(ordered) {
		return Plan{}, fmt.Errorf("%w: got %d ids for group of %d", ErrInvalidPermutation, len(ids), len(ordered))
	}

	byID := make(map[string]Item, len(ordered))
	for _, it := range ordered {
		byID[it.ID] = it
	}
	target := make([]Item, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		it, ok := byID[id]
		if !ok {
			return Plan{}, fmt.Errorf("%w: unknown item %q", ErrInvalidPermutation, id)
		}
		if seen[id] {
			return Plan{}, fmt.Errorf("%w: duplicate item %q", ErrInvalidPermutation, id)
		}
		seen[id] = true
		target[i] = it
	}

	return diff(groupID, target), nil
}

// PlanCompaction computes the changes that close gaps in the group while
// keeping its current order. A dense group yields an empty plan.
func PlanCompaction(current []Item) (Plan, error) {
	ordered, groupID, err := snapshot(current)
	if err != nil {
		return Plan{}, err
	}
	return diff(groupID, ordered), nil
}

// snapshot copies and sorts current and checks it describes one non-empty group.
func snapshot(current []Item) ([]Item, string, error) {
	if len(current) == 0 {
		return nil, "", ErrEmptyGroup
	}
	ordered := make([]Item, len(current))
	copy(ordered, current)
	SortByPosition(ordered)

	groupID := ordered[0].GroupID
	for _, it := range ordered[1:] {
		if it.GroupID != groupID {
			return nil, "", fmt.Errorf("%w: %q and %q", ErrMixedGroups, groupID, it.GroupID)
		}
	}
	return ordered, groupID, nil
}

// diff emits a change for every item whose position differs from its slot in
// target, in target order.
func diff(groupID string, target []Item) Plan {
	plan := Plan{GroupID: groupID, Size: len(target)}
	for i, it := range target {
		if it.Position != i+1 {
			plan.Changes = append(plan.Changes, Change{ItemID: it.ID, From: it.Position, To: i + 1})
		}
	}
	return plan
}
