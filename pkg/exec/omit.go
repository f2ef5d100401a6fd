package exec

import (
	"context"

	"github.com/cuemby/polydb/pkg/value"
)

// Omit removes a set of Idiom paths from every value of Child's
// batches. A single-part path is removed directly from an Object; a
// multi-part path recurses into the first part's target and removes
// the remainder there. PartAll applies the removal to every element
// of an Object or Array. A numeric-index terminal step sets that
// array element to None rather than removing it, so later elements
// keep their positions. Any other terminal part kind is ignored.
type Omit struct {
	Child OperatorPlan
	Paths []Idiom
}

func (o *Omit) ContextLevel() ContextLevel { return o.Child.ContextLevel() }
func (o *Omit) AccessMode() AccessMode     { return o.Child.AccessMode() }
func (o *Omit) Children() []OperatorPlan   { return []OperatorPlan{o.Child} }

func (o *Omit) Execute(ctx context.Context) ValueBatchStream {
	in := o.Child.Execute(ctx)
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
				next := make(ValueBatch, len(item.Batch))
				for i, row := range item.Batch {
					v := row
					for _, path := range o.Paths {
						v = omitPath(v, path)
					}
					next[i] = v
				}
				if !yield(next) {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	return out
}

func omitPath(v value.Value, path Idiom) value.Value {
	if len(path) == 0 {
		return v
	}
	head, rest := path[0], path[1:]
	switch head.Kind {
	case PartField:
		if len(rest) == 0 {
			if v.Kind() != value.KindObject {
				return v
			}
			return v.WithoutField(head.Field)
		}
		child, ok := v.Field(head.Field)
		if !ok {
			return v
		}
		return v.WithField(head.Field, omitPath(child, rest))
	case PartIndex:
		arr, ok := v.AsArray()
		if !ok || head.Index < 0 || head.Index >= len(arr) {
			return v
		}
		next := make([]value.Value, len(arr))
		copy(next, arr)
		if len(rest) == 0 {
			next[head.Index] = value.None()
		} else {
			next[head.Index] = omitPath(next[head.Index], rest)
		}
		return value.Array(next)
	case PartAll:
		switch v.Kind() {
		case value.KindArray:
			arr, _ := v.AsArray()
			next := make([]value.Value, len(arr))
			for i, el := range arr {
				if len(rest) == 0 {
					next[i] = value.None()
				} else {
					next[i] = omitPath(el, rest)
				}
			}
			return value.Array(next)
		case value.KindObject:
			if len(rest) == 0 {
				return value.EmptyObject()
			}
			out := v
			for _, k := range v.ObjectKeys() {
				el, _ := v.Field(k)
				out = out.WithField(k, omitPath(el, rest))
			}
			return out
		default:
			return v
		}
	default:
		return v
	}
}
