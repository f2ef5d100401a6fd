package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

func newDoc(id string, current value.Value) *record.CursorDoc {
	return &record.CursorDoc{
		ID:      record.RecordId{Table: "person", Key: value.String(id)},
		Current: current,
	}
}

func TestProcessRecordDataContentReplacesWholesale(t *testing.T) {
	doc := newDoc("a", obj("name", value.String("old")))
	clause := Clause{Kind: ClauseContent, Content: obj("name", value.String("new"))}
	require.NoError(t, ProcessRecordData(doc, clause))
	name, _ := doc.Current.Field("name")
	assert.Equal(t, "new", name.String())
	idVal, ok := doc.Current.Field("id")
	require.True(t, ok)
	rid, _ := idVal.AsRecordID()
	assert.Equal(t, "person", rid.Table)
}

func TestProcessRecordDataMergeDeepMerges(t *testing.T) {
	doc := newDoc("a", obj("profile", obj("age", value.Int(1))))
	clause := Clause{Kind: ClauseMerge, Content: obj("profile", obj("city", value.String("NYC")))}
	require.NoError(t, ProcessRecordData(doc, clause))
	profile, _ := doc.Current.Field("profile")
	age, ok := profile.Field("age")
	require.True(t, ok)
	ai, _ := age.AsInt()
	assert.Equal(t, int64(1), ai)
	city, ok := profile.Field("city")
	require.True(t, ok)
	assert.Equal(t, "NYC", city.String())
}

func TestProcessRecordDataSetAssignsPath(t *testing.T) {
	doc := newDoc("a", value.EmptyObject())
	clause := Clause{Kind: ClauseSet, Assignments: []Assignment{
		{Path: "profile.age", Op: AssignSet, Val: value.Int(42)},
	}}
	require.NoError(t, ProcessRecordData(doc, clause))
	profile, ok := doc.Current.Field("profile")
	require.True(t, ok)
	age, ok := profile.Field("age")
	require.True(t, ok)
	ai, _ := age.AsInt()
	assert.Equal(t, int64(42), ai)
}

func TestProcessRecordDataSetPlusEqualsAddsNumbers(t *testing.T) {
	doc := newDoc("a", obj("score", value.Int(10)))
	clause := Clause{Kind: ClauseSet, Assignments: []Assignment{
		{Path: "score", Op: AssignPlus, Val: value.Int(5)},
	}}
	require.NoError(t, ProcessRecordData(doc, clause))
	score, _ := doc.Current.Field("score")
	si, _ := score.AsInt()
	assert.Equal(t, int64(15), si)
}

func TestProcessRecordDataSetMinusEqualsRemovesArrayElement(t *testing.T) {
	doc := newDoc("a", obj("tags", value.Array([]value.Value{
		value.String("x"), value.String("y"), value.String("x"),
	})))
	clause := Clause{Kind: ClauseSet, Assignments: []Assignment{
		{Path: "tags", Op: AssignMinus, Val: value.String("x")},
	}}
	require.NoError(t, ProcessRecordData(doc, clause))
	tags, _ := doc.Current.Field("tags")
	arr, _ := tags.AsArray()
	require.Len(t, arr, 1)
	assert.Equal(t, "y", arr[0].String())
}

func TestProcessRecordDataSetPlusQAppendsOnceOnly(t *testing.T) {
	doc := newDoc("a", obj("tags", value.Array([]value.Value{value.String("x")})))
	clause := Clause{Kind: ClauseSet, Assignments: []Assignment{
		{Path: "tags", Op: AssignPlusQ, Val: value.String("x")},
	}}
	require.NoError(t, ProcessRecordData(doc, clause))
	tags, _ := doc.Current.Field("tags")
	arr, _ := tags.AsArray()
	assert.Len(t, arr, 1)

	clause2 := Clause{Kind: ClauseSet, Assignments: []Assignment{
		{Path: "tags", Op: AssignPlusQ, Val: value.String("y")},
	}}
	require.NoError(t, ProcessRecordData(doc, clause2))
	tags2, _ := doc.Current.Field("tags")
	arr2, _ := tags2.AsArray()
	assert.Len(t, arr2, 2)
}

func TestProcessRecordDataUnsetRemovesPath(t *testing.T) {
	doc := newDoc("a", obj("profile", obj("age", value.Int(1), "city", value.String("NYC"))))
	clause := Clause{Kind: ClauseUnset, UnsetPaths: []string{"profile.age"}}
	require.NoError(t, ProcessRecordData(doc, clause))
	profile, _ := doc.Current.Field("profile")
	_, hasAge := profile.Field("age")
	assert.False(t, hasAge)
	_, hasCity := profile.Field("city")
	assert.True(t, hasCity)
}

func TestProcessRecordDataPatchAddAndRemove(t *testing.T) {
	doc := newDoc("a", obj("name", value.String("old")))
	clause := Clause{Kind: ClausePatch, Patches: []PatchOp{
		{Op: "replace", Path: "/name", Value: value.String("new")},
		{Op: "add", Path: "/extra", Value: value.Bool(true)},
		{Op: "remove", Path: "/name"},
	}}
	require.NoError(t, ProcessRecordData(doc, clause))
	_, hasName := doc.Current.Field("name")
	assert.False(t, hasName)
	extra, ok := doc.Current.Field("extra")
	require.True(t, ok)
	b, _ := extra.AsBool()
	assert.True(t, b)
}

func TestSetPathDoesNotMutateSharedArray(t *testing.T) {
	shared := value.Array([]value.Value{value.Int(1), value.Int(2)})
	base := obj("items", shared)
	updated := setPath(base, []string{"items", "0"}, value.Int(99))

	origItems, _ := base.Field("items")
	origArr, _ := origItems.AsArray()
	first, _ := origArr[0].AsInt()
	assert.Equal(t, int64(1), first, "original array must be unaffected by setPath")

	newItems, _ := updated.Field("items")
	newArr, _ := newItems.AsArray()
	newFirst, _ := newArr[0].AsInt()
	assert.Equal(t, int64(99), newFirst)
}
