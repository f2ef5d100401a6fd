package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

func obj(pairs ...interface{}) value.Value {
	var keys []string
	m := map[string]value.Value{}
	for i := 0; i < len(pairs); i += 2 {
		k := pairs[i].(string)
		v := pairs[i+1].(value.Value)
		keys = append(keys, k)
		m[k] = v
	}
	return value.Object(keys, m)
}

func TestGenerateRecordIDUsesSuppliedID(t *testing.T) {
	data := obj("id", value.String("alice"))
	rid, err := GenerateRecordID("person", data)
	require.NoError(t, err)
	assert.Equal(t, "person", rid.Table)
	s, ok := rid.Key.AsString()
	require.True(t, ok)
	assert.Equal(t, "alice", s)
}

func TestGenerateRecordIDRejectsRange(t *testing.T) {
	data := obj("id", value.RangeValue(value.Range{}))
	_, err := GenerateRecordID("person", data)
	assert.ErrorIs(t, err, ErrRecordRangeID)
}

func TestGenerateRecordIDGeneratesWhenAbsent(t *testing.T) {
	rid, err := GenerateRecordID("person", value.EmptyObject())
	require.NoError(t, err)
	assert.Equal(t, "person", rid.Table)
	_, isUUID := rid.Key.AsUUID()
	assert.True(t, isUUID)
}

func TestDefaultRecordDataForcesID(t *testing.T) {
	doc := &record.CursorDoc{
		ID:      record.RecordId{Table: "person", Key: value.String("bob")},
		Current: obj("name", value.String("Bob")),
	}
	err := DefaultRecordData(doc, nil, nil)
	require.NoError(t, err)
	idVal, ok := doc.Current.Field("id")
	require.True(t, ok)
	rid, ok := idVal.AsRecordID()
	require.True(t, ok)
	assert.Equal(t, "person", rid.Table)
}

func TestDefaultRecordDataForcesInOutOnNewEdge(t *testing.T) {
	in := value.Record("person", value.String("a"))
	out := value.Record("person", value.String("b"))
	doc := &record.CursorDoc{
		ID:      record.RecordId{Table: "knows", Key: value.String("e1")},
		Current: value.EmptyObject(),
		IsNew:   true,
	}
	err := DefaultRecordData(doc, &in, &out)
	require.NoError(t, err)
	gotIn, _ := doc.Current.Field("in")
	assert.True(t, value.Equal(in, gotIn))
}

func TestDefaultRecordDataRejectsInOutOverrideOnExisting(t *testing.T) {
	in := value.Record("person", value.String("a"))
	out := value.Record("person", value.String("b"))
	doc := &record.CursorDoc{
		ID:      record.RecordId{Table: "knows", Key: value.String("e1")},
		Current: obj("in", in, "out", out),
		IsNew:   false,
	}
	newIn := value.Record("person", value.String("z"))
	err := DefaultRecordData(doc, &newIn, &out)
	assert.ErrorIs(t, err, ErrNotNewRecord)
}

func TestProcessMergeDataDeepMerges(t *testing.T) {
	doc := &record.CursorDoc{
		Current: obj("profile", obj("name", value.String("Bob"), "age", value.Int(30))),
	}
	ProcessMergeData(doc, obj("profile", obj("age", value.Int(31))))
	profile, ok := doc.Current.Field("profile")
	require.True(t, ok)
	name, _ := profile.Field("name")
	age, _ := profile.Field("age")
	assert.Equal(t, "Bob", name.String())
	ai, _ := age.AsInt()
	assert.Equal(t, int64(31), ai)
}
