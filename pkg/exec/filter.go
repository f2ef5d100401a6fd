package exec

import (
	"context"
	"fmt"
)

// Filter evaluates Pred against every value in each of Child's
// batches, keeping only truthy results. Batches that end up empty are
// dropped rather than forwarded.
type Filter struct {
	Child OperatorPlan
	Pred  PhysicalExpr
}

func (f *Filter) ContextLevel() ContextLevel { return ContextDatabase }
func (f *Filter) AccessMode() AccessMode     { return AccessRead }
func (f *Filter) Children() []OperatorPlan   { return []OperatorPlan{f.Child} }

func (f *Filter) Execute(ctx context.Context) ValueBatchStream {
	in := f.Child.Execute(ctx)
	out := make(chan ValueBatchOrErr)
	go emit(ctx, out, func(yield func(ValueBatch) bool) error {
		for {
			select {
			case item, ok := <-in:
				if !ok {
					return nil
				}
				if item.Err != nil {
					return item.Err
				}
				kept, err := f.apply(item.Batch)
				if err != nil {
					return err
				}
				if len(kept) == 0 {
					continue
				}
				if !yield(kept) {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	return out
}

func (f *Filter) apply(batch ValueBatch) (ValueBatch, error) {
	kept := make(ValueBatch, 0, len(batch))
	for _, row := range batch {
		res, err := f.Pred.Eval(row)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Pred, err)
		}
		if res.Truthy() {
			kept = append(kept, row)
		}
	}
	return kept, nil
}
