package mtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/kv/memkv"
	"github.com/cuemby/polydb/pkg/vector"
)

func openTree(t *testing.T) (*Tree, kv.Tx) {
	t.Helper()
	store := memkv.New()
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	keyFunc := func(suffix []byte) []byte {
		return append([]byte("idx/t1/"), suffix...)
	}
	nodeStore := NewStore(tx, keyFunc)
	tree, err := Open(nodeStore, vector.Euclidean)
	require.NoError(t, err)
	tree.state.Capacity = 4
	return tree, tx
}

func TestInsertAndKNNFindsNearest(t *testing.T) {
	tree, _ := openTree(t)

	pts := []vector.Vector{
		{0, 0}, {1, 0}, {0, 1}, {10, 10}, {11, 10}, {10, 11}, {5, 5},
	}
	for i, p := range pts {
		require.NoError(t, tree.Insert(p, uint64(i)))
	}
	require.NoError(t, tree.Finish())

	res, err := tree.KNN(vector.Vector{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)

	got := map[uint64]bool{}
	for _, r := range res {
		got[r.DocID] = true
	}
	assert.True(t, got[0])
	assert.True(t, got[1])
	assert.True(t, got[2])
}

func TestKNNOrdersByAscendingDistance(t *testing.T) {
	tree, _ := openTree(t)
	pts := []vector.Vector{{0, 0}, {5, 0}, {1, 0}, {3, 0}}
	for i, p := range pts {
		require.NoError(t, tree.Insert(p, uint64(i)))
	}
	require.NoError(t, tree.Finish())

	res, err := tree.KNN(vector.Vector{0, 0}, 4)
	require.NoError(t, err)
	require.Len(t, res, 4)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Dist, res[i].Dist)
	}
}

func TestInsertTriggersSplitAboveCapacity(t *testing.T) {
	tree, _ := openTree(t)
	for i := 0; i < 20; i++ {
		p := vector.Vector{float64(i), float64(i * 2)}
		require.NoError(t, tree.Insert(p, uint64(i)))
	}
	require.NoError(t, tree.Finish())
	require.NotNil(t, tree.state.Root)

	root, err := tree.store.LoadNode(*tree.state.Root)
	require.NoError(t, err)
	assert.Equal(t, KindInternal, root.Kind)

	res, err := tree.KNN(vector.Vector{0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 5)
}

func TestDeleteRemovesDocFromKNNResults(t *testing.T) {
	tree, _ := openTree(t)
	pts := []vector.Vector{{0, 0}, {1, 0}, {2, 0}}
	for i, p := range pts {
		require.NoError(t, tree.Insert(p, uint64(i)))
	}
	require.NoError(t, tree.Delete(vector.Vector{0, 0}, 0))
	require.NoError(t, tree.Finish())

	res, err := tree.KNN(vector.Vector{0, 0}, 3)
	require.NoError(t, err)
	for _, r := range res {
		assert.NotEqual(t, uint64(0), r.DocID)
	}
}

func TestDeleteLastDocCollapsesRoot(t *testing.T) {
	tree, _ := openTree(t)
	require.NoError(t, tree.Insert(vector.Vector{1, 1}, 42))
	require.NoError(t, tree.Delete(vector.Vector{1, 1}, 42))
	require.NoError(t, tree.Finish())
	assert.Nil(t, tree.state.Root)
}

func TestInsertSameVectorMergesDocSet(t *testing.T) {
	tree, _ := openTree(t)
	require.NoError(t, tree.Insert(vector.Vector{3, 3}, 1))
	require.NoError(t, tree.Insert(vector.Vector{3, 3}, 2))
	require.NoError(t, tree.Finish())

	res, err := tree.KNN(vector.Vector{3, 3}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}
