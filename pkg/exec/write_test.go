package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/document"
	"github.com/cuemby/polydb/pkg/planner"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

func TestExecutorUpsertCreatesAndIndexes(t *testing.T) {
	tx := openExecTx(t)
	cat := NewMapCatalog("n", "d", false)
	cat.Define("person", TableSchema{
		Indexes: []catalog.IndexDef{{Name: "by_email", Cols: []string{"email"}, Kind: catalog.IndexUnique}},
	})
	ex := NewExecutor("n", "d", cat, planner.New(tx.Inner()))

	rid := record.RecordId{Table: "person", Key: value.String("alice")}
	doc := &record.CursorDoc{ID: rid, Current: value.EmptyObject(), IsNew: true}
	clause := document.Clause{Kind: document.ClauseContent, Content: value.EmptyObject().WithField("email", value.String("alice@example.com"))}

	require.NoError(t, ex.Upsert(tx, doc, clause, nil, nil))

	idBytes, err := idBytesFor(rid.Key)
	require.NoError(t, err)
	val, found, err := ex.loadRecord(tx.Inner(), "person", idBytes)
	require.NoError(t, err)
	require.True(t, found)
	email, ok := val.Field("email")
	require.True(t, ok)
	assert.Equal(t, value.String("alice@example.com"), email)

	// a second record with the same email must be rejected by the
	// unique index it maintains.
	rid2 := record.RecordId{Table: "person", Key: value.String("alice2")}
	doc2 := &record.CursorDoc{ID: rid2, Current: value.EmptyObject(), IsNew: true}
	clause2 := document.Clause{Kind: document.ClauseContent, Content: value.EmptyObject().WithField("email", value.String("alice@example.com"))}
	assert.Error(t, ex.Upsert(tx, doc2, clause2, nil, nil))
}

func TestExecutorUpsertUpdateReindexesOnChange(t *testing.T) {
	tx := openExecTx(t)
	cat := NewMapCatalog("n", "d", false)
	cat.Define("person", TableSchema{
		Indexes: []catalog.IndexDef{{Name: "by_email", Cols: []string{"email"}, Kind: catalog.IndexUnique}},
	})
	ex := NewExecutor("n", "d", cat, planner.New(tx.Inner()))

	rid := record.RecordId{Table: "person", Key: value.String("bob")}
	doc := &record.CursorDoc{ID: rid, Current: value.EmptyObject(), IsNew: true}
	clause := document.Clause{Kind: document.ClauseContent, Content: value.EmptyObject().WithField("email", value.String("bob@old.com"))}
	require.NoError(t, ex.Upsert(tx, doc, clause, nil, nil))

	idBytes, err := idBytesFor(rid.Key)
	require.NoError(t, err)
	old, found, err := ex.loadRecord(tx.Inner(), "person", idBytes)
	require.NoError(t, err)
	require.True(t, found)

	doc2 := &record.CursorDoc{ID: rid, Original: &old, Current: old, IsNew: false}
	clause2 := document.Clause{Kind: document.ClauseMerge, Content: value.EmptyObject().WithField("email", value.String("bob@new.com"))}
	require.NoError(t, ex.Upsert(tx, doc2, clause2, nil, nil))

	// the freed old email must now be reusable by a fresh record.
	rid3 := record.RecordId{Table: "person", Key: value.String("carol")}
	doc3 := &record.CursorDoc{ID: rid3, Current: value.EmptyObject(), IsNew: true}
	clause3 := document.Clause{Kind: document.ClauseContent, Content: value.EmptyObject().WithField("email", value.String("bob@old.com"))}
	assert.NoError(t, ex.Upsert(tx, doc3, clause3, nil, nil))
}

func TestExecutorUpsertThenDeleteRoundTrips(t *testing.T) {
	tx := openExecTx(t)
	cat := NewMapCatalog("n", "d", false)
	cat.Define("person", TableSchema{})
	ex := NewExecutor("n", "d", cat, planner.New(tx.Inner()))

	rid := record.RecordId{Table: "person", Key: value.String("dan")}
	doc := &record.CursorDoc{ID: rid, Current: value.EmptyObject(), IsNew: true}
	clause := document.Clause{Kind: document.ClauseContent, Content: value.EmptyObject().WithField("name", value.String("Dan"))}
	require.NoError(t, ex.Upsert(tx, doc, clause, nil, nil))

	require.NoError(t, ex.DeleteRecord(context.Background(), tx, rid, false))

	idBytes, err := idBytesFor(rid.Key)
	require.NoError(t, err)
	_, found, err := ex.loadRecord(tx.Inner(), "person", idBytes)
	require.NoError(t, err)
	assert.False(t, found)
}
