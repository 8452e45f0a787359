package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/ordinal/internal/order"
)

// finalState is what assertions are evaluated against.
type finalState struct {
	items       map[string][]order.Item
	writes      int
	needsResync func(groupID string) bool
}

// evaluateAssertion checks a single assertion. A nil error means it holds.
func evaluateAssertion(a Assertion, st finalState) error {
	switch a.Type {
	case AssertFinalOrder:
		return assertFinalOrder(a, st)
	case AssertDense:
		return assertDense(a, st)
	case AssertWriteCount:
		return assertWriteCount(a, st)
	case AssertNeedsResync:
		return assertNeedsResync(a, st)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertFinalOrder verifies the group's items in position order.
func assertFinalOrder(a Assertion, st finalState) error {
	got := order.IDs(st.items[a.Group])
	if !slices.Equal(got, a.Items) {
		return fmt.Errorf("final_order %s: got %v, want %v", a.Group, got, a.Items)
	}
	return nil
}

// assertDense verifies the group's positions are exactly 1..N.
func assertDense(a Assertion, st finalState) error {
	items := st.items[a.Group]
	if !order.IsDense(items) {
		positions := make([]int, len(items))
		for i, it := range items {
			positions[i] = it.Position
		}
		return fmt.Errorf("dense %s: positions %v", a.Group, positions)
	}
	return nil
}

func assertWriteCount(a Assertion, st finalState) error {
	if st.writes != a.Count {
		return fmt.Errorf("write_count: got %d, want %d", st.writes, a.Count)
	}
	return nil
}

func assertNeedsResync(a Assertion, st finalState) error {
	if got := st.needsResync(a.Group); got != a.Want {
		return fmt.Errorf("needs_resync %s: got %t, want %t", a.Group, got, a.Want)
	}
	return nil
}
