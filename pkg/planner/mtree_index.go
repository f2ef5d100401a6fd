package planner

import (
	"context"
	"fmt"

	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/mtree"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
	"github.com/cuemby/polydb/pkg/vector"
)

// mtreeBinding is the live handle for one MTree IndexDef: the tree
// itself plus the doc-id registry translating between the tree's
// uint64 doc ids and this table's record keys.
type mtreeBinding struct {
	ref  IndexReference
	tree *mtree.Tree
	docs *DocIDRegistry
	dist vector.DistanceFunc
}

func newMtreeBinding(tx kv.Tx, ref IndexReference) (*mtreeBinding, error) {
	dist, ok := vector.ByName(ref.Def.Distance)
	if !ok {
		return nil, fmt.Errorf("planner: unknown distance function %q for index %s", ref.Def.Distance, ref.Def.Name)
	}
	keyFunc := func(suffix []byte) []byte {
		return keyspaceIndexData(ref, append([]byte{0x10}, suffix...))
	}
	store := mtree.NewStore(tx, keyFunc)
	tree, err := mtree.Open(store, dist)
	if err != nil {
		return nil, fmt.Errorf("planner: open mtree for index %s: %w", ref.Def.Name, err)
	}
	if tree.IsEmpty() && ref.Def.Capacity > 0 {
		tree.SetCapacity(ref.Def.Capacity)
	}
	return &mtreeBinding{
		ref:  ref,
		tree: tree,
		docs: NewDocIDRegistry(ref.NS, ref.DB, ref.Tb, ref.Def.ID),
		dist: dist,
	}, nil
}

// IndexVector inserts or updates recordKey's vector in the tree,
// allocating a doc id for it on first insertion.
func (b *mtreeBinding) IndexVector(tx kv.Tx, recordKey []byte, vec vector.Vector) error {
	docID, err := b.docs.ResolveDocID(tx, recordKey)
	if err != nil {
		return err
	}
	if err := b.tree.Insert(vec, docID); err != nil {
		return err
	}
	return b.tree.Finish()
}

// RemoveVector deletes recordKey's vector from the tree.
func (b *mtreeBinding) RemoveVector(tx kv.Tx, recordKey []byte, vec vector.Vector) error {
	docID, err := b.docs.ResolveDocID(tx, recordKey)
	if err != nil {
		return err
	}
	if err := b.tree.Delete(vec, docID); err != nil {
		return err
	}
	if err := b.docs.Forget(tx, recordKey); err != nil {
		return err
	}
	return b.tree.Finish()
}

func (b *mtreeBinding) knnIterator(tx kv.Tx, query value.Value, k int) (ThingIterator, error) {
	qv, err := valueToVector(query)
	if err != nil {
		return nil, err
	}
	results, err := b.tree.KNN(qv, k)
	if err != nil {
		return nil, err
	}
	return &mtreeIterator{tx: tx, binding: b, results: results}, nil
}

type mtreeIterator struct {
	tx      kv.Tx
	binding *mtreeBinding
	results []mtree.KNNResult
	pos     int
}

func (it *mtreeIterator) Next(ctx context.Context) (record.RecordId, bool, error) {
	for it.pos < len(it.results) {
		res := it.results[it.pos]
		it.pos++
		key, ok, err := it.binding.docs.RecordKeyFor(it.tx, res.DocID)
		if err != nil {
			return record.RecordId{}, false, err
		}
		if !ok {
			continue // doc id removed since the KNN scan started
		}
		return record.RecordId{Table: it.binding.ref.Tb, Key: value.Bytes(key)}, true, nil
	}
	return record.RecordId{}, false, nil
}

func (it *mtreeIterator) Close() error { return nil }

// valueToVector converts an Array-of-numbers Value into a
// vector.Vector, the only representation mtree.Tree accepts.
func valueToVector(v value.Value) (vector.Vector, error) {
	arr, ok := v.AsArray()
	if !ok {
		return nil, fmt.Errorf("planner: KNN query value must be an array, got %s", v.Kind())
	}
	out := make(vector.Vector, len(arr))
	for i, item := range arr {
		switch item.Kind() {
		case value.KindFloat:
			f, _ := item.AsFloat()
			out[i] = f
		case value.KindInt:
			n, _ := item.AsInt()
			out[i] = float64(n)
		default:
			return nil, fmt.Errorf("planner: vector element %d is not numeric (%s)", i, item.Kind())
		}
	}
	return out, nil
}

func keyspaceIndexData(ref IndexReference, suffix []byte) []byte {
	return indexDataKey(ref.NS, ref.DB, ref.Tb, ref.Def.ID, suffix)
}
