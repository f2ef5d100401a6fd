package exec

import (
	"context"
	"fmt"

	"github.com/cuemby/polydb/pkg/value"
)

// AggFn selects one AggregateExtractor accumulator.
type AggFn int

const (
	AggCount AggFn = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// AggSpec names one output field computed by an AggFn over Field.
type AggSpec struct {
	Name  string
	Field Idiom
	Fn    AggFn
}

// Aggregate groups Child's rows by GroupBy and reduces each group with
// Aggs, emitting one output row per group once the whole input has
// been drained (an AggregateExtractor needs every row of a group
// before it can finalize an average or a min/max).
type Aggregate struct {
	Child   OperatorPlan
	GroupBy []Idiom
	Aggs    []AggSpec
}

func (a *Aggregate) ContextLevel() ContextLevel { return ContextDatabase }
func (a *Aggregate) AccessMode() AccessMode     { return AccessRead }
func (a *Aggregate) Children() []OperatorPlan   { return []OperatorPlan{a.Child} }

type aggState struct {
	keyRow  value.Value
	count   int64
	sum     map[string]float64
	min     map[string]value.Value
	max     map[string]value.Value
	seenMin map[string]bool
}

func (a *Aggregate) Execute(ctx context.Context) ValueBatchStream {
	out := make(chan ValueBatchOrErr)
	go emit(ctx, out, func(yield func(ValueBatch) bool) error {
		rows, err := drain(ctx, a.Child.Execute(ctx))
		if err != nil {
			return err
		}
		groups := make(map[string]*aggState)
		var order []string
		for _, row := range rows {
			key, keyRow := a.groupKey(row)
			st, ok := groups[key]
			if !ok {
				st = &aggState{
					keyRow:  keyRow,
					sum:     make(map[string]float64),
					min:     make(map[string]value.Value),
					max:     make(map[string]value.Value),
					seenMin: make(map[string]bool),
				}
				groups[key] = st
				order = append(order, key)
			}
			a.accumulate(st, row)
		}
		batch := make(ValueBatch, 0, len(order))
		for _, key := range order {
			batch = append(batch, a.finalize(groups[key]))
		}
		if len(batch) > 0 {
			yield(batch)
		}
		return nil
	})
	return out
}

func (a *Aggregate) groupKey(row value.Value) (string, value.Value) {
	keyRow := value.EmptyObject()
	key := ""
	for i, idiom := range a.GroupBy {
		v := idiom.Get(row)
		key += fmt.Sprintf("%d:%s|", i, v.String())
		keyRow = keyRow.WithField(idiom.String(), v)
	}
	return key, keyRow
}

func (a *Aggregate) accumulate(st *aggState, row value.Value) {
	st.count++
	for _, spec := range a.Aggs {
		v := spec.Field.Get(row)
		switch spec.Fn {
		case AggSum, AggAvg:
			f, _ := numeric(v)
			st.sum[spec.Name] += f
		case AggMin:
			if !st.seenMin[spec.Name] || valueLess(v, st.min[spec.Name]) {
				st.min[spec.Name] = v
			}
			st.seenMin[spec.Name] = true
		case AggMax:
			if cur, ok := st.max[spec.Name]; !ok || valueLess(cur, v) {
				st.max[spec.Name] = v
			}
		}
	}
}

func (a *Aggregate) finalize(st *aggState) value.Value {
	out := st.keyRow
	for _, spec := range a.Aggs {
		switch spec.Fn {
		case AggCount:
			out = out.WithField(spec.Name, value.Int(st.count))
		case AggSum:
			out = out.WithField(spec.Name, value.Float(st.sum[spec.Name]))
		case AggAvg:
			avg := 0.0
			if st.count > 0 {
				avg = st.sum[spec.Name] / float64(st.count)
			}
			out = out.WithField(spec.Name, value.Float(avg))
		case AggMin:
			out = out.WithField(spec.Name, st.min[spec.Name])
		case AggMax:
			out = out.WithField(spec.Name, st.max[spec.Name])
		}
	}
	return out
}

func valueLess(a, b value.Value) bool {
	af, aok := numeric(a)
	bf, bok := numeric(b)
	if aok && bok {
		return af < bf
	}
	as, aok := a.AsString()
	bs, bok := b.AsString()
	if aok && bok {
		return as < bs
	}
	return false
}
