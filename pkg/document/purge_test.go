package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs/zerolog"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/kv/memkv"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/txn"
	"github.com/cuemby/polydb/pkg/value"
)

func TestEncodeIDKeyString(t *testing.T) {
	b, err := EncodeIDKey(value.String("alice"))
	require.NoError(t, err)
	assert.Equal(t, []byte("alice"), b)
}

func TestEncodeIDKeyInt(t *testing.T) {
	b1, err := EncodeIDKey(value.Int(1))
	require.NoError(t, err)
	b2, err := EncodeIDKey(value.Int(2))
	require.NoError(t, err)
	assert.True(t, string(b1) < string(b2))
}

func TestEncodeIDKeyRejectsUnsupportedKind(t *testing.T) {
	_, err := EncodeIDKey(value.Bool(true))
	assert.Error(t, err)
}

// fakeExecutor is a minimal StatementExecutor recording what was
// dispatched, for testing PurgeReferences' policy fan-out without a
// real query executor.
type fakeExecutor struct {
	deleted []record.RecordId
	unset   []string
	custom  []string
	failOn  string
}

func (f *fakeExecutor) DeleteRecord(ctx context.Context, tx *txn.Tx, rid record.RecordId, disablePermissions bool) error {
	f.deleted = append(f.deleted, rid)
	return nil
}

func (f *fakeExecutor) DeleteEdgesTouching(ctx context.Context, tx *txn.Tx, rid record.RecordId, disablePermissions bool) error {
	return nil
}

func (f *fakeExecutor) UnsetField(ctx context.Context, tx *txn.Tx, rid record.RecordId, fieldPath string, match value.Value, disablePermissions bool) error {
	f.unset = append(f.unset, rid.Table+"."+fieldPath)
	return nil
}

func (f *fakeExecutor) RunCustom(ctx context.Context, tx *txn.Tx, stmt string, this, reference value.Value, disablePermissions bool) error {
	f.custom = append(f.custom, stmt)
	return nil
}

func openTx(t *testing.T) *txn.Tx {
	t.Helper()
	store := memkv.New()
	rawTx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	return txn.New(rawTx, zerolog.Nop())
}

func TestPurgeReferencesCascadeDeletesReferencingRecord(t *testing.T) {
	tx := openTx(t)
	targetID, err := EncodeIDKey(value.String("bob"))
	require.NoError(t, err)
	fkBytes, err := EncodeIDKey(value.String("post1"))
	require.NoError(t, err)

	refKey := keyspace.Ref("ns", "db", "person", targetID, "post", "author", fkBytes)
	require.NoError(t, tx.Inner().Set(refKey, []byte{}))

	fields := []catalog.FieldDef{
		{Table: "post", Path: "author", Reference: true, OnDelete: catalog.RefCascade},
	}
	exec := &fakeExecutor{}
	rid := record.RecordId{Table: "person", Key: value.String("bob")}

	err = PurgeReferences(context.Background(), tx, "ns", "db", "person", rid, targetID, fields, exec)
	require.NoError(t, err)
	require.Len(t, exec.deleted, 1)
	assert.Equal(t, "post", exec.deleted[0].Table)

	start, end := keyspace.PrefixRange(keyspace.RefPrefix("ns", "db", "person", targetID))
	remaining, err := tx.Inner().Keys(kv.KeyRange{Start: start, End: end}, 0, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 0)
}

func TestPurgeReferencesRejectAbortsWithFailure(t *testing.T) {
	tx := openTx(t)
	targetID, _ := EncodeIDKey(value.String("bob"))
	fkBytes, _ := EncodeIDKey(value.String("post1"))
	refKey := keyspace.Ref("ns", "db", "person", targetID, "post", "author", fkBytes)
	require.NoError(t, tx.Inner().Set(refKey, []byte{}))

	fields := []catalog.FieldDef{
		{Table: "post", Path: "author", Reference: true, OnDelete: catalog.RefReject},
	}
	exec := &fakeExecutor{}
	rid := record.RecordId{Table: "person", Key: value.String("bob")}

	err := PurgeReferences(context.Background(), tx, "ns", "db", "person", rid, targetID, fields, exec)
	require.Error(t, err)
	var rf *RefsUpdateFailure
	assert.ErrorAs(t, err, &rf)
}

func TestPurgeReferencesUnsetDispatchesFieldRemoval(t *testing.T) {
	tx := openTx(t)
	targetID, _ := EncodeIDKey(value.String("bob"))
	fkBytes, _ := EncodeIDKey(value.String("post1"))
	refKey := keyspace.Ref("ns", "db", "person", targetID, "post", "author", fkBytes)
	require.NoError(t, tx.Inner().Set(refKey, []byte{}))

	fields := []catalog.FieldDef{
		{Table: "post", Path: "author", Reference: true, OnDelete: catalog.RefUnset},
	}
	exec := &fakeExecutor{}
	rid := record.RecordId{Table: "person", Key: value.String("bob")}

	err := PurgeReferences(context.Background(), tx, "ns", "db", "person", rid, targetID, fields, exec)
	require.NoError(t, err)
	require.Len(t, exec.unset, 1)
	assert.Equal(t, "post.author", exec.unset[0])
}

func TestPurgeDeletesRecordValue(t *testing.T) {
	tx := openTx(t)
	idBytes, _ := EncodeIDKey(value.String("bob"))
	recKey := keyspace.Record("ns", "db", "person", idBytes)
	require.NoError(t, tx.Inner().Set(recKey, []byte("somedata")))

	exec := &fakeExecutor{}
	rid := record.RecordId{Table: "person", Key: value.String("bob")}
	err := Purge(context.Background(), tx, "ns", "db", "person", rid, false, nil, exec)
	require.NoError(t, err)

	exists, err := tx.Inner().Exists(recKey, nil)
	require.NoError(t, err)
	assert.False(t, exists)
}
