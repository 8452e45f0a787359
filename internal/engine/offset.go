package engine

import (
	"context"

	"github.com/roach88/ordinal/internal/order"
)

// OffsetCalculator picks the staging base for a plan.
//
// The base is computed from the snapshot. When the store can also report its
// live maximum (MaxPositioner), the larger of the two is used so an item
// appended after the snapshot was taken is still below the staging region.
type OffsetCalculator struct {
	Margin int
}

// Base returns the first staging position for groupID.
func (o OffsetCalculator) Base(ctx context.Context, s PositionStore, groupID string, snapshot []order.Item) (int, error) {
	base := order.SafeOffsetBase(snapshot, o.Margin)

	mp, ok := s.(MaxPositioner)
	if !ok {
		return base, nil
	}
	highest, err := mp.MaxPosition(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if live := highest + max(o.Margin, 1); live > base {
		base = live
	}
	return base, nil
}
