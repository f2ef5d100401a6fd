package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/value"
)

func vectorValue(v []float64) value.Value {
	items := make([]value.Value, len(v))
	for i, f := range v {
		items[i] = value.Float(f)
	}
	return value.Array(items)
}

func TestMtreeBindingIndexAndKNN(t *testing.T) {
	tx := openTx(t)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "doc",
		Def: catalog.IndexDef{Table: "doc", Name: "by_vec", ID: 10, Kind: catalog.IndexMTree, Dimension: 2, Distance: "euclidean"},
	}
	b, err := newMtreeBinding(tx, ref)
	require.NoError(t, err)

	require.NoError(t, b.IndexVector(tx, []byte("doc:a"), []float64{0, 0}))
	require.NoError(t, b.IndexVector(tx, []byte("doc:b"), []float64{10, 10}))
	require.NoError(t, b.IndexVector(tx, []byte("doc:c"), []float64{0.5, 0.5}))

	it, err := b.knnIterator(tx, vectorValue([]float64{0, 0}), 2)
	require.NoError(t, err)

	var found []string
	for {
		rid, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		found = append(found, rid.Table+":"+string(keyBytes(rid.Key)))
	}
	assert.Len(t, found, 2)
}

func TestMtreeBindingUnknownDistanceErrors(t *testing.T) {
	tx := openTx(t)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "doc",
		Def: catalog.IndexDef{Table: "doc", Name: "by_vec", ID: 11, Kind: catalog.IndexMTree, Dimension: 2, Distance: "bogus"},
	}
	_, err := newMtreeBinding(tx, ref)
	assert.Error(t, err)
}

func TestMtreeBindingRemoveVectorForgetsDocID(t *testing.T) {
	tx := openTx(t)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "doc",
		Def: catalog.IndexDef{Table: "doc", Name: "by_vec", ID: 12, Kind: catalog.IndexMTree, Dimension: 2, Distance: "euclidean"},
	}
	b, err := newMtreeBinding(tx, ref)
	require.NoError(t, err)

	require.NoError(t, b.IndexVector(tx, []byte("doc:a"), []float64{1, 1}))
	docID, err := b.docs.ResolveDocID(tx, []byte("doc:a"))
	require.NoError(t, err)

	require.NoError(t, b.RemoveVector(tx, []byte("doc:a"), []float64{1, 1}))

	_, ok, err := b.docs.RecordKeyFor(tx, docID)
	require.NoError(t, err)
	assert.False(t, ok)
}
