package task

import (
	"cmp"
	"slices"

	"github.com/benbjohnson/immutable"
)

type idComparer struct{}

func (idComparer) Compare(a, b ID) int { return cmp.Compare(a, b) }

// reorderer turns a stream of results arriving in completion order into
// the order of ids. Results that arrive before their turn wait in a sorted
// side map; every arrival drains the map for as long as it holds the result
// the stream is waiting for, so nothing is left behind once the last result
// has arrived.
type reorderer[R any] struct {
	pending []ID
	early   *immutable.SortedMapBuilder[ID, Result[R]]
}

func newReorderer[R any](ids []ID, order Order) *reorderer[R] {
	pending := slices.Clone(ids)
	if order == ReverseOrder {
		slices.Reverse(pending)
	}
	return &reorderer[R]{
		pending: pending,
		early:   immutable.NewSortedMapBuilder[ID, Result[R]](idComparer{}),
	}
}

// push accepts one arrival and emits every result that has become due.
// It returns false as soon as emit does.
func (r *reorderer[R]) push(res Result[R], emit func(Result[R]) bool) bool {
	if len(r.pending) > 0 && res.TaskID() == r.pending[0] {
		r.pending = r.pending[1:]
		if !emit(res) {
			return false
		}
	} else {
		r.early.Set(res.TaskID(), res)
	}

	for len(r.pending) > 0 {
		next, ok := r.early.Get(r.pending[0])
		if !ok {
			break
		}
		r.early.Delete(r.pending[0])
		r.pending = r.pending[1:]
		if !emit(next) {
			return false
		}
	}
	return true
}
