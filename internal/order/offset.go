package order

// DefaultOffsetMargin is the gap kept between the highest live position and
// the first staging position.
const DefaultOffsetMargin = 1

// SafeOffsetBase returns the first position of a staging range for the group
// described by items. The base is strictly greater than every position in
// use, so [base, base+k) is disjoint from all live positions for any k.
//
// items must be the whole group, not only the items about to change.
// A margin below 1 is treated as 1.
func SafeOffsetBase(items []Item, margin int) int {
	if margin < 1 {
		margin = 1
	}
	return MaxPosition(items) + margin
}

// MaxPosition returns the largest position among items, or 0 for none.
func MaxPosition(items []Item) int {
	highest := 0
	for _, it := range items {
		if it.Position > highest {
			highest = it.Position
		}
	}
	return highest
}
