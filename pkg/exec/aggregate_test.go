package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/value"
)

func rowWith(city string, amount int64) value.Value {
	return value.EmptyObject().WithField("city", value.String(city)).WithField("amount", value.Int(amount))
}

func TestAggregateGroupsAndSums(t *testing.T) {
	src := &SliceSource{Batches: []ValueBatch{
		{rowWith("austin", 10), rowWith("austin", 5), rowWith("dallas", 7)},
	}}
	agg := &Aggregate{
		Child:   src,
		GroupBy: []Idiom{field("city")},
		Aggs: []AggSpec{
			{Name: "total", Field: field("amount"), Fn: AggSum},
			{Name: "n", Field: field("amount"), Fn: AggCount},
		},
	}
	got := collect(t, agg.Execute(context.Background()))
	require.Len(t, got, 2)

	byCity := map[string]value.Value{}
	for _, row := range got {
		city, _ := row.Field("city")
		s, _ := city.AsString()
		byCity[s] = row
	}

	austin := byCity["austin"]
	total, _ := austin.Field("total")
	n, _ := austin.Field("n")
	assert.Equal(t, value.Float(15), total)
	assert.Equal(t, value.Int(2), n)

	dallas := byCity["dallas"]
	dTotal, _ := dallas.Field("total")
	assert.Equal(t, value.Float(7), dTotal)
}

func TestAggregateMinMax(t *testing.T) {
	src := &SliceSource{Batches: []ValueBatch{
		{rowWith("austin", 10), rowWith("austin", 5), rowWith("austin", 20)},
	}}
	agg := &Aggregate{
		Child:   src,
		GroupBy: []Idiom{field("city")},
		Aggs: []AggSpec{
			{Name: "lo", Field: field("amount"), Fn: AggMin},
			{Name: "hi", Field: field("amount"), Fn: AggMax},
		},
	}
	got := collect(t, agg.Execute(context.Background()))
	require.Len(t, got, 1)
	lo, _ := got[0].Field("lo")
	hi, _ := got[0].Field("hi")
	assert.Equal(t, value.Int(5), lo)
	assert.Equal(t, value.Int(20), hi)
}
