package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

func TestPlannerBindIndexMemoizesHandle(t *testing.T) {
	tx := openTx(t)
	p := New(tx)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "person",
		Def: catalog.IndexDef{Table: "person", Name: "by_email", ID: 1, Kind: catalog.IndexUnique},
	}

	a, err := p.BindIndex(ref)
	require.NoError(t, err)
	b, err := p.BindIndex(ref)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPlannerNewIteratorEquality(t *testing.T) {
	tx := openTx(t)
	p := New(tx)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "person",
		Def: catalog.IndexDef{Table: "person", Name: "by_email", ID: 2, Kind: catalog.IndexUnique},
	}
	entry, err := p.BindIndex(ref)
	require.NoError(t, err)
	require.NoError(t, entry.std.Put(tx, value.String("a@example.com"), []byte("person:a")))

	it, err := p.NewIterator(context.Background(), IndexOption{Ref: ref, Op: OpEqual, Value: value.String("a@example.com")})
	require.NoError(t, err)
	rid, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "person", rid.Table)
}

func TestPlannerNewIteratorRejectsWrongOperator(t *testing.T) {
	tx := openTx(t)
	p := New(tx)
	ref := IndexReference{
		NS: "test", DB: "db", Tb: "person",
		Def: catalog.IndexDef{Table: "person", Name: "by_email", ID: 3, Kind: catalog.IndexUnique},
	}
	_, err := p.NewIterator(context.Background(), IndexOption{Ref: ref, Op: OpKNN, Value: value.Int(1)})
	assert.Error(t, err)
}

func TestPlannerExpEntryAndMatchEntryAreMemoized(t *testing.T) {
	tx := openTx(t)
	p := New(tx)
	type expr struct{}
	e := &expr{}

	a := p.ExpEntry(e)
	b := p.ExpEntry(e)
	assert.Same(t, a, b)

	m1 := p.MatchEntry(MatchRef(1))
	m2 := p.MatchEntry(MatchRef(1))
	assert.Same(t, m1, m2)
}

func TestKNNPriorityListSortsAndTruncates(t *testing.T) {
	l := NewKNNPriorityList(2)
	l.Push(5.0, record.RecordId{Table: "doc", Key: value.String("c")})
	l.Push(1.0, record.RecordId{Table: "doc", Key: value.String("a")})
	l.Push(3.0, record.RecordId{Table: "doc", Key: value.String("b")})

	top := l.BuildBruteforceKNNResult()
	require.Len(t, top, 2)
	s0, _ := top[0].Key.AsString()
	s1, _ := top[1].Key.AsString()
	assert.Equal(t, "a", s0)
	assert.Equal(t, "b", s1)
}
