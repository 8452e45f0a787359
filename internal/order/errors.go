package order

import "errors"

// Store adapters wrap these so callers can classify failures with errors.Is.
var (
	// ErrConstraintViolation means a write would have produced two items
	// with the same (group_id, position).
	ErrConstraintViolation = errors.New("position constraint violation")

	// ErrItemNotFound means the item addressed by a write does not exist.
	ErrItemNotFound = errors.New("item not found")
)

// Planner input errors.
var (
	ErrEmptyGroup         = errors.New("group is empty")
	ErrInvalidMove        = errors.New("move index out of range")
	ErrInvalidPermutation = errors.New("invalid permutation")
	ErrInvalidID          = errors.New("invalid identifier")
	ErrMixedGroups        = errors.New("snapshot spans more than one group")
)
