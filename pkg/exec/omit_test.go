package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/value"
)

func TestOmitSinglePartRemovesField(t *testing.T) {
	row := value.EmptyObject().WithField("a", value.Int(1)).WithField("b", value.Int(2))
	src := &SliceSource{Batches: []ValueBatch{{row}}}
	o := &Omit{Child: src, Paths: []Idiom{field("b")}}
	got := collect(t, o.Execute(context.Background()))
	require.Len(t, got, 1)
	_, ok := got[0].Field("b")
	assert.False(t, ok)
	v, ok := got[0].Field("a")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)
}

func TestOmitNestedPath(t *testing.T) {
	row := value.EmptyObject().WithField("a", value.EmptyObject().WithField("b", value.Int(1)).WithField("c", value.Int(2)))
	src := &SliceSource{Batches: []ValueBatch{{row}}}
	path := Idiom{{Kind: PartField, Field: "a"}, {Kind: PartField, Field: "b"}}
	o := &Omit{Child: src, Paths: []Idiom{path}}
	got := collect(t, o.Execute(context.Background()))
	require.Len(t, got, 1)
	a, _ := got[0].Field("a")
	_, ok := a.Field("b")
	assert.False(t, ok)
	c, ok := a.Field("c")
	require.True(t, ok)
	assert.Equal(t, value.Int(2), c)
}

func TestOmitArrayIndexSetsNoneNotRemove(t *testing.T) {
	row := value.Array([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	src := &SliceSource{Batches: []ValueBatch{{row}}}
	path := Idiom{{Kind: PartIndex, Index: 1}}
	o := &Omit{Child: src, Paths: []Idiom{path}}
	got := collect(t, o.Execute(context.Background()))
	require.Len(t, got, 1)
	arr, ok := got[0].AsArray()
	require.True(t, ok)
	require.Len(t, arr, 3)
	assert.True(t, arr[1].IsNone())
	assert.Equal(t, value.Int(3), arr[2])
}

func TestOmitAllOverObjectClearsTerminalPath(t *testing.T) {
	row := value.EmptyObject().
		WithField("x", value.EmptyObject().WithField("secret", value.Int(1))).
		WithField("y", value.EmptyObject().WithField("secret", value.Int(2)))
	src := &SliceSource{Batches: []ValueBatch{{row}}}
	path := Idiom{{Kind: PartAll}, {Kind: PartField, Field: "secret"}}
	o := &Omit{Child: src, Paths: []Idiom{path}}
	got := collect(t, o.Execute(context.Background()))
	require.Len(t, got, 1)
	x, _ := got[0].Field("x")
	_, ok := x.Field("secret")
	assert.False(t, ok)
	y, _ := got[0].Field("y")
	_, ok = y.Field("secret")
	assert.False(t, ok)
}
