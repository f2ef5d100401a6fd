package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/polydb/pkg/value"
)

func TestFilterDropsFalsyRows(t *testing.T) {
	src := &SliceSource{Batches: []ValueBatch{
		{value.Int(0), value.Int(1), value.Int(2)},
	}}
	f := &Filter{
		Child: src,
		Pred:  CompareExpr{Op: CmpGreater, Left: rowExpr{}, Right: LiteralExpr{Value: value.Int(0)}},
	}
	got := collect(t, f.Execute(context.Background()))
	assert.Equal(t, []value.Value{value.Int(1), value.Int(2)}, got)
}

func TestFilterEmitsNoBatchWhenAllDropped(t *testing.T) {
	src := &SliceSource{Batches: []ValueBatch{{value.Int(0)}}}
	f := &Filter{Child: src, Pred: rowExpr{}}
	got := collect(t, f.Execute(context.Background()))
	assert.Empty(t, got)
}

// rowExpr evaluates to the row itself, letting tests build predicates
// directly over scalar rows without an object wrapper.
type rowExpr struct{}

func (rowExpr) Eval(row value.Value) (value.Value, error) { return row, nil }
func (rowExpr) String() string                            { return "<row>" }
