// Package exec implements the streaming physical-plan operators that
// sit downstream of pkg/planner's iterators: Filter, Omit, Aggregate,
// and the Ordered/OrderedLimit sort variants. Go has no native
// async-trait stream, so every operator's execute() returns a
// ValueBatchStream — a receive-only channel of batches the caller
// ranges over — rather than an iterator object. Grounded on the
// teacher's scheduler.Scheduler.run() goroutine-plus-select loop,
// generalized from a fixed ticker to a child stream plus a
// cancellation context.
package exec

import (
	"context"

	"github.com/cuemby/polydb/pkg/value"
)

// ValueBatch is one chunk of values flowing through a pipeline stage.
type ValueBatch []value.Value

// ValueBatchOrErr carries either a batch or a terminal error. A stream
// that yields an Err never yields another item afterward.
type ValueBatchOrErr struct {
	Batch ValueBatch
	Err   error
}

// ValueBatchStream is the channel every operator's Execute returns.
// Closed once the underlying data is exhausted or ctx is cancelled.
type ValueBatchStream <-chan ValueBatchOrErr

// ContextLevel is the minimum execution context an operator requires,
// validated by the engine before the plan runs.
type ContextLevel int

const (
	ContextNone ContextLevel = iota
	ContextRoot
	ContextNamespace
	ContextDatabase
)

// AccessMode says whether an operator only reads or also writes.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// OperatorPlan is one node of a physical plan tree.
type OperatorPlan interface {
	ContextLevel() ContextLevel
	AccessMode() AccessMode
	Children() []OperatorPlan
	Execute(ctx context.Context) ValueBatchStream
}

// emit is the common goroutine body every operator uses: read batches
// from in (if any), transform, and write to out, stopping the moment
// ctx is cancelled. transform may itself emit zero, one, or several
// batches per input batch (e.g. Omit is 1:1, a fully-drained-then-sort
// stage is N:1).
func emit(ctx context.Context, out chan<- ValueBatchOrErr, fn func(yield func(ValueBatch) bool) error) {
	defer close(out)
	send := func(b ValueBatch) bool {
		select {
		case out <- ValueBatchOrErr{Batch: b}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	if err := fn(send); err != nil {
		select {
		case out <- ValueBatchOrErr{Err: err}:
		case <-ctx.Done():
		}
	}
}

// drain reads every batch of in into a single flat slice, stopping
// early if ctx is cancelled or in reports an error. Used by operators
// that must see the whole input before producing output (Ordered,
// OrderedLimit, whole-stream Aggregate).
func drain(ctx context.Context, in ValueBatchStream) ([]value.Value, error) {
	var all []value.Value
	for {
		select {
		case item, ok := <-in:
			if !ok {
				return all, nil
			}
			if item.Err != nil {
				return nil, item.Err
			}
			all = append(all, item.Batch...)
		case <-ctx.Done():
			return all, ctx.Err()
		}
	}
}

// SliceSource is a leaf OperatorPlan that replays a fixed set of
// batches, used to seed a pipeline under test or to wrap a
// planner.ThingIterator's already-materialized rows.
type SliceSource struct {
	Batches []ValueBatch
	Level   ContextLevel
	Mode    AccessMode
}

func (s *SliceSource) ContextLevel() ContextLevel    { return s.Level }
func (s *SliceSource) AccessMode() AccessMode        { return s.Mode }
func (s *SliceSource) Children() []OperatorPlan      { return nil }

func (s *SliceSource) Execute(ctx context.Context) ValueBatchStream {
	out := make(chan ValueBatchOrErr)
	go emit(ctx, out, func(yield func(ValueBatch) bool) error {
		for _, b := range s.Batches {
			if !yield(b) {
				return nil
			}
		}
		return nil
	})
	return out
}
