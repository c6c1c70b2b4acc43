package task

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectReordered(ids []ID, arrivals []ID, order Order) ([]ID, *reorderer[int]) {
	ro := newReorderer[int](ids, order)
	var out []ID
	for _, id := range arrivals {
		ro.push(successResult(id, int(id), true), func(r Result[int]) bool {
			out = append(out, r.TaskID())
			return true
		})
	}
	return out, ro
}

func TestReorderer(t *testing.T) {
	ids := []ID{10, 11, 12, 13, 14}

	tests := []struct {
		name     string
		arrivals []ID
		order    Order
		want     []ID
	}{
		{"in order", []ID{10, 11, 12, 13, 14}, Ordered, ids},
		{"fully reversed arrivals", []ID{14, 13, 12, 11, 10}, Ordered, ids},
		{"interleaved", []ID{11, 10, 13, 14, 12}, Ordered, ids},
		{"reverse order", []ID{10, 11, 12, 13, 14}, ReverseOrder, []ID{14, 13, 12, 11, 10}},
		{"reverse order mixed arrivals", []ID{12, 14, 10, 13, 11}, ReverseOrder, []ID{14, 13, 12, 11, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ro := collectReordered(ids, tt.arrivals, tt.order)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, ro.pending)
			assert.Equal(t, 0, ro.early.Len(), "no result may be left in the side map")
		})
	}
}

func TestReorderer_RandomPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids := make([]ID, 50)
	for i := range ids {
		ids[i] = ID(1000 + i)
	}

	for range 100 {
		arrivals := append([]ID(nil), ids...)
		rng.Shuffle(len(arrivals), func(i, j int) { arrivals[i], arrivals[j] = arrivals[j], arrivals[i] })

		got, ro := collectReordered(ids, arrivals, Ordered)
		require.Equal(t, ids, got)
		require.Equal(t, 0, ro.early.Len())
	}
}

func TestReorderer_StopsWhenEmitDeclines(t *testing.T) {
	ro := newReorderer[int]([]ID{1, 2, 3}, Ordered)

	var out []ID
	take := func(r Result[int]) bool {
		out = append(out, r.TaskID())
		return len(out) < 2
	}

	assert.True(t, ro.push(successResult(ID(3), 3, true), take))
	assert.True(t, ro.push(successResult(ID(2), 2, true), take))
	assert.False(t, ro.push(successResult(ID(1), 1, true), take))
	assert.Equal(t, []ID{1, 2}, out)
}
