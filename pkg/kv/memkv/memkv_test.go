package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/kv"
)

func TestSetGetCommitVisibility(t *testing.T) {
	store := New()
	ctx := context.Background()

	txn, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("a"), []byte("1")))
	v, err := txn.Get([]byte("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	require.NoError(t, txn.Commit())

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	v, err = ro.Get([]byte("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	require.NoError(t, ro.Cancel())
}

func TestCancelDiscardsWrites(t *testing.T) {
	store := New()
	ctx := context.Background()

	txn, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("a"), []byte("1")))
	require.NoError(t, txn.Cancel())

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	_, err = ro.Get([]byte("a"), nil)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	require.NoError(t, ro.Cancel())
}

func TestPutcCAS(t *testing.T) {
	store := New()
	ctx := context.Background()
	txn, _ := store.Begin(ctx, true)
	require.NoError(t, txn.Putc([]byte("k"), []byte("1"), nil))
	assert.ErrorIs(t, txn.Putc([]byte("k"), []byte("2"), nil), kv.ErrCASFailed)
	require.NoError(t, txn.Putc([]byte("k"), []byte("2"), []byte("1")))
	v, _ := txn.Get([]byte("k"), nil)
	assert.Equal(t, []byte("2"), v)
	require.NoError(t, txn.Commit())
}

func TestScanOrderedRange(t *testing.T) {
	store := New()
	ctx := context.Background()
	txn, _ := store.Begin(ctx, true)
	for _, k := range []string{"b", "a", "c", "d"} {
		require.NoError(t, txn.Set([]byte(k), []byte(k)))
	}
	rows, err := txn.Scan(kv.KeyRange{Start: []byte("a"), End: []byte("c")}, 0, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []byte("a"), rows[0].Key)
	assert.Equal(t, []byte("b"), rows[1].Key)
	require.NoError(t, txn.Cancel())
}

func TestSavePointRollback(t *testing.T) {
	store := New()
	ctx := context.Background()
	txn, _ := store.Begin(ctx, true)
	require.NoError(t, txn.Set([]byte("k"), []byte("outer")))

	sp, err := txn.NewSavePoint()
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("k"), []byte("inner")))
	v, _ := txn.Get([]byte("k"), nil)
	assert.Equal(t, []byte("inner"), v)

	require.NoError(t, sp.Rollback())
	v, _ = txn.Get([]byte("k"), nil)
	assert.Equal(t, []byte("outer"), v)
	require.NoError(t, txn.Commit())
}

func TestStreamKeysDeliversAll(t *testing.T) {
	store := New()
	ctx := context.Background()
	txn, _ := store.Begin(ctx, true)
	for i := 0; i < 250; i++ {
		k := []byte{byte(i / 256), byte(i % 256)}
		require.NoError(t, txn.Set(k, []byte{1}))
	}
	out, errc := txn.StreamKeys(ctx, kv.KeyRange{Start: nil, End: nil}, nil, kv.Forward)
	total := 0
	for page := range out {
		total += len(page)
	}
	require.NoError(t, <-errc)
	assert.Equal(t, 250, total)
	require.NoError(t, txn.Cancel())
}

func TestVersionedReadRejected(t *testing.T) {
	store := New()
	ctx := context.Background()
	txn, _ := store.Begin(ctx, false)
	_, err := txn.Get([]byte("k"), []byte("v1"))
	assert.ErrorIs(t, err, kv.ErrVersionedReadsUnsupported)
	require.NoError(t, txn.Cancel())
}
