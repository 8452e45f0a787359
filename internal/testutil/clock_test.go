package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stamped is a write or a caller event on the shared clock.
type stamped struct {
	seq   int64
	label string
}

// moveDToFront runs the staged writes of moving D to the front of A B C D
// and stamps an outcome event on the same clock afterwards.
func moveDToFront(t *testing.T, rec *RecordingStore, clock *DeterministicClock) []stamped {
	t.Helper()
	ctx := context.Background()
	for i, id := range []string{"D", "A", "B", "C"} {
		require.NoError(t, rec.SetPosition(ctx, id, 5+i))
	}
	outcome := stamped{seq: clock.Next(), label: "outcome:stage"}
	for i, id := range []string{"D", "A", "B", "C"} {
		require.NoError(t, rec.SetPosition(ctx, id, 1+i))
	}
	done := stamped{seq: clock.Next(), label: "outcome:commit"}

	var out []stamped
	for _, w := range rec.Writes() {
		out = append(out, stamped{seq: w.Seq, label: w.ItemID})
	}
	out = append(out, outcome, done)
	slices.SortFunc(out, func(a, b stamped) int { return int(a.seq - b.seq) })
	return out
}

func labels(events []stamped) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.label
	}
	return out
}

func TestDeterministicClock_InterleavesWritesAndEvents(t *testing.T) {
	clock := NewDeterministicClock()
	rec := NewRecordingStore(NewMemoryStore().Seed("G", "A", "B", "C", "D"), clock)

	events := moveDToFront(t, rec, clock)

	assert.Equal(t, []string{
		"D", "A", "B", "C", "outcome:stage",
		"D", "A", "B", "C", "outcome:commit",
	}, labels(events))
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.seq, "seqs have no gaps")
	}
	assert.Equal(t, int64(10), clock.Current())
}

func TestDeterministicClock_ResetReplaysSameSeqs(t *testing.T) {
	clock := NewDeterministicClock()
	rec := NewRecordingStore(NewMemoryStore().Seed("G", "A", "B", "C", "D"), clock)
	first := moveDToFront(t, rec, clock)

	rec.Reset()
	assert.Equal(t, int64(0), clock.Current(), "recorder reset rewinds the shared clock")

	// A fresh group stands in for re-running the scenario from scratch.
	rec = NewRecordingStore(NewMemoryStore().Seed("G", "A", "B", "C", "D"), clock)
	second := moveDToFront(t, rec, clock)

	assert.Equal(t, first, second)
}

func TestDeterministicClock_ConcurrentWritesGetDistinctSeqs(t *testing.T) {
	const n = 64
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a'+i%26)) + string(rune('A'+i/26))
	}
	clock := NewDeterministicClock()
	rec := NewRecordingStore(NewMemoryStore().Seed("G", ids...), clock)

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rec.SetPosition(context.Background(), id, n+1+i))
		}()
	}
	wg.Wait()

	seqs := make([]int64, 0, n)
	for _, w := range rec.Writes() {
		seqs = append(seqs, w.Seq)
	}
	slices.Sort(seqs)
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}
}
