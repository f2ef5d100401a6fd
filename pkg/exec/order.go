package exec

import (
	"container/heap"
	"context"
	"math/rand"
	"sort"

	"github.com/cuemby/polydb/pkg/value"
)

// OrderKey is one ORDER BY term.
type OrderKey struct {
	Field Idiom
	Desc  bool
}

func less(keys []OrderKey, a, b value.Value) bool {
	for _, k := range keys {
		av, bv := k.Field.Get(a), k.Field.Get(b)
		switch {
		case valueLess(av, bv):
			return !k.Desc
		case valueLess(bv, av):
			return k.Desc
		}
	}
	return false
}

// Ordered accumulates every batch of Child, then sorts the whole set
// and re-emits it as fixed-size batches (BatchSize, default 1024),
// using sort.SliceStable: rows that compare equal on every key keep
// the order in which Child produced them.
type Ordered struct {
	Child     OperatorPlan
	Keys      []OrderKey
	BatchSize int
}

func (o *Ordered) ContextLevel() ContextLevel { return ContextDatabase }
func (o *Ordered) AccessMode() AccessMode     { return AccessRead }
func (o *Ordered) Children() []OperatorPlan   { return []OperatorPlan{o.Child} }

func (o *Ordered) Execute(ctx context.Context) ValueBatchStream {
	out := make(chan ValueBatchOrErr)
	size := o.BatchSize
	if size <= 0 {
		size = 1024
	}
	go emit(ctx, out, func(yield func(ValueBatch) bool) error {
		rows, err := drain(ctx, o.Child.Execute(ctx))
		if err != nil {
			return err
		}
		sort.SliceStable(rows, func(i, j int) bool { return less(o.Keys, rows[i], rows[j]) })
		for start := 0; start < len(rows); start += size {
			end := start + size
			if end > len(rows) {
				end = len(rows)
			}
			if !yield(ValueBatch(rows[start:end])) {
				return nil
			}
		}
		return nil
	})
	return out
}

// OrderedLimit avoids sorting the full input: it keeps a bounded
// min-heap of size Limit keyed by the reverse of the requested order,
// so the heap root is always the current worst kept row and can be
// evicted in O(log Limit) as better rows arrive. Emitted once as a
// single sorted batch, using container/heap.
type OrderedLimit struct {
	Child OperatorPlan
	Keys  []OrderKey
	Limit int
}

func (o *OrderedLimit) ContextLevel() ContextLevel { return ContextDatabase }
func (o *OrderedLimit) AccessMode() AccessMode     { return AccessRead }
func (o *OrderedLimit) Children() []OperatorPlan   { return []OperatorPlan{o.Child} }

type limitHeap struct {
	rows []value.Value
	keys []OrderKey
}

func (h *limitHeap) Len() int { return len(h.rows) }

// Less inverts the requested order so the heap root (index 0) is
// always the current worst row in the kept set, making it the cheap
// one to evict when a better row arrives.
func (h *limitHeap) Less(i, j int) bool { return less(h.keys, h.rows[j], h.rows[i]) }
func (h *limitHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *limitHeap) Push(x interface{}) { h.rows = append(h.rows, x.(value.Value)) }
func (h *limitHeap) Pop() interface{} {
	n := len(h.rows)
	v := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return v
}

func (o *OrderedLimit) Execute(ctx context.Context) ValueBatchStream {
	out := make(chan ValueBatchOrErr)
	go emit(ctx, out, func(yield func(ValueBatch) bool) error {
		h := &limitHeap{keys: o.Keys}
		in := o.Child.Execute(ctx)
		for {
			select {
			case item, ok := <-in:
				if !ok {
					rows := make([]value.Value, len(h.rows))
					copy(rows, h.rows)
					sort.SliceStable(rows, func(i, j int) bool { return less(o.Keys, rows[i], rows[j]) })
					if len(rows) > 0 {
						yield(ValueBatch(rows))
					}
					return nil
				}
				if item.Err != nil {
					return item.Err
				}
				for _, row := range item.Batch {
					if o.Limit <= 0 {
						continue
					}
					if h.Len() < o.Limit {
						heap.Push(h, row)
						continue
					}
					if less(o.Keys, row, h.rows[0]) {
						h.rows[0] = row
						heap.Fix(h, 0)
					}
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	return out
}

// Random reorders Child's fully-drained input uniformly at random. No
// shuffle/random-sampling library appears anywhere in the pack, so
// this uses math/rand directly.
type Random struct {
	Child OperatorPlan
}

func (r *Random) ContextLevel() ContextLevel { return ContextDatabase }
func (r *Random) AccessMode() AccessMode     { return AccessRead }
func (r *Random) Children() []OperatorPlan   { return []OperatorPlan{r.Child} }

func (r *Random) Execute(ctx context.Context) ValueBatchStream {
	out := make(chan ValueBatchOrErr)
	go emit(ctx, out, func(yield func(ValueBatch) bool) error {
		rows, err := drain(ctx, r.Child.Execute(ctx))
		if err != nil {
			return err
		}
		rand.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		if len(rows) > 0 {
			yield(ValueBatch(rows))
		}
		return nil
	})
	return out
}
