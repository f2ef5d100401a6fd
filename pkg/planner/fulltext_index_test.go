package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/catalog"
)

func TestFulltextBindingIndexAndMatch(t *testing.T) {
	tx := openTx(t)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "article",
		Def: catalog.IndexDef{Table: "article", Name: "by_body", ID: 20, Kind: catalog.IndexFullText},
	}
	b := newFulltextBinding(tx, ref)

	require.NoError(t, b.IndexDocument(tx, []byte("article:a"), []string{"The quick Brown fox"}))
	require.NoError(t, b.IndexDocument(tx, []byte("article:b"), []string{"Lazy dog sleeps"}))

	it, err := b.matchIterator(tx, []string{"brown"})
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
	assert.Equal(t, []string{"article:article:a"}, found)
}

func TestFulltextBindingRemoveDocumentDropsMatches(t *testing.T) {
	tx := openTx(t)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "article",
		Def: catalog.IndexDef{Table: "article", Name: "by_body", ID: 21, Kind: catalog.IndexFullText},
	}
	b := newFulltextBinding(tx, ref)

	require.NoError(t, b.IndexDocument(tx, []byte("article:a"), []string{"quick brown fox"}))
	require.NoError(t, b.RemoveDocument(tx, []byte("article:a")))

	it, err := b.matchIterator(tx, []string{"brown"})
	require.NoError(t, err)
	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFulltextBindingDefaultsBM25Params(t *testing.T) {
	tx := openTx(t)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "article",
		Def: catalog.IndexDef{Table: "article", Name: "by_body", ID: 22, Kind: catalog.IndexSearch},
	}
	b := newFulltextBinding(tx, ref)
	assert.NotNil(t, b.scorer)
}
