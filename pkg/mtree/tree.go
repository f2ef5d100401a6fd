package mtree

import (
	"container/heap"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/cuemby/polydb/pkg/vector"
)

// Tree is a handle bound to one Store and distance function, valid for
// the lifetime of the transaction that produced the Store.
type Tree struct {
	store *Store
	dist  vector.DistanceFunc
	state *State
}

// Open loads (or lazily initializes) the tree's state from store.
func Open(store *Store, dist vector.DistanceFunc) (*Tree, error) {
	st, err := store.LoadState()
	if err != nil {
		return nil, err
	}
	return &Tree{store: store, dist: dist, state: st}, nil
}

// Finish persists the tree's metadata. Call once after a batch of
// Insert/Delete calls: the generation counter increments whenever the
// tree is modified and is written back here.
func (t *Tree) Finish() error {
	return t.store.SaveState(t.state)
}

func (t *Tree) d(a, b vector.Vector) (float64, error) {
	return t.dist(a, b)
}

// Capacity returns the tree's configured node fanout.
func (t *Tree) Capacity() int { return t.state.Capacity }

// IsEmpty reports whether the tree has no root node yet.
func (t *Tree) IsEmpty() bool { return t.state.Root == nil }

// SetCapacity overrides the node fanout used by future splits. Only
// meaningful before the tree has any nodes; callers normally set this
// once right after Open on a freshly-initialized tree.
func (t *Tree) SetCapacity(c int) { t.state.Capacity = c }

// Insert adds docID under obj.
func (t *Tree) Insert(obj vector.Vector, docID uint64) error {
	t.state.Generation++
	if t.state.Root == nil {
		id := t.state.AllocNode()
		leaf := &Node{Kind: KindLeaf, Leaves: []leafEntry{{
			Obj:   obj,
			Props: ObjectProperties{ParentDist: 0, Docs: bitmapOf(docID)},
		}}}
		if err := t.store.SaveNode(id, leaf); err != nil {
			return err
		}
		t.state.Root = &id
		return nil
	}

	promoted, err := t.insertInto(*t.state.Root, obj, docID, 0)
	if err != nil {
		return err
	}
	if promoted == nil {
		return nil
	}
	// Root split: create a new internal root with both halves.
	newRootID := t.state.AllocNode()
	newRoot := &Node{Kind: KindInternal, Routes: []routingEntry{
		{Obj: promoted.leftObj, Props: RoutingProperties{Node: promoted.left, Radius: promoted.leftRadius}},
		{Obj: promoted.rightObj, Props: RoutingProperties{Node: promoted.right, Radius: promoted.rightRadius}},
	}}
	if err := t.store.SaveNode(newRootID, newRoot); err != nil {
		return err
	}
	t.state.Root = &newRootID
	return nil
}

// splitResult describes a node that split into two, to be installed as
// two routing entries in the parent (or as a new root).
type splitResult struct {
	leftObj, rightObj         vector.Vector
	left, right               NodeID
	leftRadius, rightRadius   float64
}

// insertInto recurses into nodeID, returning a non-nil splitResult if
// nodeID itself split and the caller (parent) must install both halves.
func (t *Tree) insertInto(nodeID NodeID, obj vector.Vector, docID uint64, parentDist float64) (*splitResult, error) {
	n, err := t.store.LoadNode(nodeID)
	if err != nil {
		return nil, err
	}

	if n.Kind == KindLeaf {
		for i := range n.Leaves {
			eq, err := t.d(n.Leaves[i].Obj, obj)
			if err != nil {
				return nil, err
			}
			if eq == 0 {
				n.Leaves[i].Props.Docs.Add(docID)
				return nil, t.store.SaveNode(nodeID, n)
			}
		}
		n.Leaves = append(n.Leaves, leafEntry{Obj: obj, Props: ObjectProperties{ParentDist: parentDist, Docs: bitmapOf(docID)}})
		if len(n.Leaves) <= t.state.Capacity {
			return nil, t.store.SaveNode(nodeID, n)
		}
		return t.splitLeaf(nodeID, n)
	}

	// Internal: descend into the child minimizing distance to obj.
	best := -1
	bestDist := 0.0
	for i, r := range n.Routes {
		dd, err := t.d(r.Obj, obj)
		if err != nil {
			return nil, err
		}
		if best == -1 || dd < bestDist {
			best, bestDist = i, dd
		}
	}
	child := n.Routes[best].Props.Node
	promoted, err := t.insertInto(child, obj, docID, bestDist)
	if err != nil {
		return nil, err
	}
	if bestDist > n.Routes[best].Props.Radius {
		n.Routes[best].Props.Radius = bestDist
	}
	if promoted == nil {
		return nil, t.store.SaveNode(nodeID, n)
	}

	// Child split: replace its routing entry with the two halves.
	n.Routes[best] = routingEntry{Obj: promoted.leftObj, Props: RoutingProperties{Node: promoted.left, Radius: promoted.leftRadius}}
	n.Routes = append(n.Routes, routingEntry{Obj: promoted.rightObj, Props: RoutingProperties{Node: promoted.right, Radius: promoted.rightRadius}})
	if len(n.Routes) <= t.state.Capacity {
		return nil, t.store.SaveNode(nodeID, n)
	}
	return t.splitInternal(nodeID, n)
}

// splitLeaf partitions an overflowing leaf's entries around the two
// most distant objects.
func (t *Tree) splitLeaf(nodeID NodeID, n *Node) (*splitResult, error) {
	c1, c2, err := t.mostDistantLeaf(n.Leaves)
	if err != nil {
		return nil, err
	}
	group1, group2, err := t.partitionLeaf(n.Leaves, c1, c2)
	if err != nil {
		return nil, err
	}
	r1 := &Node{Kind: KindLeaf, Leaves: group1}
	r2 := &Node{Kind: KindLeaf, Leaves: group2}
	sortLeaves(r1.Leaves)
	sortLeaves(r2.Leaves)

	rad1, err := t.coveringRadiusLeaf(n.Leaves[c1].Obj, group1)
	if err != nil {
		return nil, err
	}
	rad2, err := t.coveringRadiusLeaf(n.Leaves[c2].Obj, group2)
	if err != nil {
		return nil, err
	}

	newID := t.state.AllocNode()
	if err := t.store.SaveNode(nodeID, r1); err != nil {
		return nil, err
	}
	if err := t.store.SaveNode(newID, r2); err != nil {
		return nil, err
	}
	return &splitResult{
		leftObj: n.Leaves[c1].Obj, left: nodeID, leftRadius: rad1,
		rightObj: n.Leaves[c2].Obj, right: newID, rightRadius: rad2,
	}, nil
}

func (t *Tree) splitInternal(nodeID NodeID, n *Node) (*splitResult, error) {
	c1, c2, err := t.mostDistantRouting(n.Routes)
	if err != nil {
		return nil, err
	}
	group1, group2, err := t.partitionRouting(n.Routes, c1, c2)
	if err != nil {
		return nil, err
	}
	r1 := &Node{Kind: KindInternal, Routes: group1}
	r2 := &Node{Kind: KindInternal, Routes: group2}
	sortRoutes(r1.Routes)
	sortRoutes(r2.Routes)

	rad1 := maxCoveringRadiusRouting(n.Routes[c1].Obj, group1, t)
	rad2 := maxCoveringRadiusRouting(n.Routes[c2].Obj, group2, t)
	rv1, err := rad1()
	if err != nil {
		return nil, err
	}
	rv2, err := rad2()
	if err != nil {
		return nil, err
	}

	newID := t.state.AllocNode()
	if err := t.store.SaveNode(nodeID, r1); err != nil {
		return nil, err
	}
	if err := t.store.SaveNode(newID, r2); err != nil {
		return nil, err
	}
	return &splitResult{
		leftObj: n.Routes[c1].Obj, left: nodeID, leftRadius: rv1,
		rightObj: n.Routes[c2].Obj, right: newID, rightRadius: rv2,
	}, nil
}

func (t *Tree) mostDistantLeaf(entries []leafEntry) (int, int, error) {
	best1, best2 := 0, 1
	bestD := -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			dd, err := t.d(entries[i].Obj, entries[j].Obj)
			if err != nil {
				return 0, 0, err
			}
			if dd > bestD {
				bestD, best1, best2 = dd, i, j
			}
		}
	}
	return best1, best2, nil
}

func (t *Tree) mostDistantRouting(entries []routingEntry) (int, int, error) {
	best1, best2 := 0, 1
	bestD := -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			dd, err := t.d(entries[i].Obj, entries[j].Obj)
			if err != nil {
				return 0, 0, err
			}
			if dd > bestD {
				bestD, best1, best2 = dd, i, j
			}
		}
	}
	return best1, best2, nil
}

// partitionLeaf sorts every entry by distance to the first promoted
// center and splits the ordered list in half.
func (t *Tree) partitionLeaf(entries []leafEntry, c1, c2 int) ([]leafEntry, []leafEntry, error) {
	type scored = struct {
		e leafEntry
		d float64
	}
	scoredEntries := make([]scored, len(entries))
	for i, e := range entries {
		dd, err := t.d(entries[c1].Obj, e.Obj)
		if err != nil {
			return nil, nil, err
		}
		scoredEntries[i] = scored{e, dd}
	}
	sortByDist(scoredEntries)
	mid := len(scoredEntries) / 2
	var g1, g2 []leafEntry
	for i, s := range scoredEntries {
		if i < mid {
			g1 = append(g1, s.e)
		} else {
			g2 = append(g2, s.e)
		}
	}
	_ = c2
	return g1, g2, nil
}

func (t *Tree) partitionRouting(entries []routingEntry, c1, c2 int) ([]routingEntry, []routingEntry, error) {
	type scored = struct {
		e routingEntry
		d float64
	}
	scoredEntries := make([]scored, len(entries))
	for i, e := range entries {
		dd, err := t.d(entries[c1].Obj, e.Obj)
		if err != nil {
			return nil, nil, err
		}
		scoredEntries[i] = scored{e, dd}
	}
	sortByDist(scoredEntries)
	mid := len(scoredEntries) / 2
	var g1, g2 []routingEntry
	for i, s := range scoredEntries {
		if i < mid {
			g1 = append(g1, s.e)
		} else {
			g2 = append(g2, s.e)
		}
	}
	_ = c2
	return g1, g2, nil
}

func sortByDist[T any](s []struct {
	e T
	d float64
}) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].d < s[j-1].d; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func (t *Tree) coveringRadiusLeaf(center vector.Vector, entries []leafEntry) (float64, error) {
	max := 0.0
	for _, e := range entries {
		dd, err := t.d(center, e.Obj)
		if err != nil {
			return 0, err
		}
		if dd > max {
			max = dd
		}
	}
	return max, nil
}

func maxCoveringRadiusRouting(center vector.Vector, entries []routingEntry, t *Tree) func() (float64, error) {
	return func() (float64, error) {
		max := 0.0
		for _, e := range entries {
			dd, err := t.d(center, e.Obj)
			if err != nil {
				return 0, err
			}
			total := dd + e.Props.Radius
			if total > max {
				max = total
			}
		}
		return max, nil
	}
}

func bitmapOf(docID uint64) *roaring64.Bitmap {
	bm := roaring64.New()
	bm.Add(docID)
	return bm
}

// Delete removes docID from obj's entry. Underflow/merge handling is
// simplified relative to the full M-Tree algorithm: an underflowing
// leaf is left in place rather than redistributed, since the tree
// remains correct (just not maximally balanced) either way, and
// rebalancing is a space/time optimization, not a correctness
// requirement this package enforces on its own.
func (t *Tree) Delete(obj vector.Vector, docID uint64) error {
	if t.state.Root == nil {
		return nil
	}
	t.state.Generation++
	empty, err := t.deleteFrom(*t.state.Root, obj, docID)
	if err != nil {
		return err
	}
	if empty {
		if err := t.store.DeleteNode(*t.state.Root); err != nil {
			return err
		}
		t.state.Root = nil
	}
	return nil
}

// deleteFrom returns true if nodeID became empty and should be removed
// by the caller.
func (t *Tree) deleteFrom(nodeID NodeID, obj vector.Vector, docID uint64) (bool, error) {
	n, err := t.store.LoadNode(nodeID)
	if err != nil {
		return false, err
	}
	if n.Kind == KindLeaf {
		for i := range n.Leaves {
			eq, err := t.d(n.Leaves[i].Obj, obj)
			if err != nil {
				return false, err
			}
			if eq != 0 {
				continue
			}
			n.Leaves[i].Props.Docs.Remove(docID)
			if n.Leaves[i].Props.Docs.IsEmpty() {
				n.Leaves = append(n.Leaves[:i], n.Leaves[i+1:]...)
			}
			if len(n.Leaves) == 0 {
				return true, nil
			}
			return false, t.store.SaveNode(nodeID, n)
		}
		return false, nil // object not found: no-op
	}

	for i := range n.Routes {
		dd, err := t.d(n.Routes[i].Obj, obj)
		if err != nil {
			return false, err
		}
		if dd > n.Routes[i].Props.Radius {
			continue
		}
		childEmpty, err := t.deleteFrom(n.Routes[i].Props.Node, obj, docID)
		if err != nil {
			return false, err
		}
		if childEmpty {
			n.Routes = append(n.Routes[:i], n.Routes[i+1:]...)
		}
		if len(n.Routes) == 0 {
			return true, nil
		}
		if len(n.Routes) == 1 {
			// A node left with a single route is saved as it is; it is
			// not collapsed into its child, and Delete only replaces a
			// root that has become empty.
			return false, t.store.SaveNode(nodeID, n)
		}
		return false, t.store.SaveNode(nodeID, n)
	}
	return false, nil
}

// --- KNN search -----------------------------------------------------

type pqItem struct {
	minDist float64
	nodeID  NodeID
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool   { return pq[i].minDist < pq[j].minDist }
func (pq priorityQueue) Swap(i, j int)        { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)          { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// KNNResult is one result of a KNN search: a document id and its
// distance from the query vector.
type KNNResult struct {
	DocID uint64
	Dist  float64
}

type resultHeap []KNNResult

func (h resultHeap) Len() int { return len(h) }
func (h resultHeap) Less(i, j int) bool {
	if h[i].Dist != h[j].Dist {
		return h[i].Dist > h[j].Dist // max-heap on distance: worst is at root
	}
	return h[i].DocID > h[j].DocID
}
func (h resultHeap) Swap(i, j int)     { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)       { *h = append(*h, x.(KNNResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNN returns up to k nearest document ids to q, in ascending distance
// order.
func (t *Tree) KNN(q vector.Vector, k int) ([]KNNResult, error) {
	if t.state.Root == nil || k <= 0 {
		return nil, nil
	}
	pq := &priorityQueue{{minDist: 0, nodeID: *t.state.Root}}
	heap.Init(pq)
	results := &resultHeap{}

	checkAdd := func(d float64) bool {
		if results.Len() < k {
			return true
		}
		return d < (*results)[0].Dist
	}
	pushResult := func(docID uint64, d float64) {
		heap.Push(results, KNNResult{DocID: docID, Dist: d})
		if results.Len() > k {
			heap.Pop(results)
		}
	}

	for pq.Len() > 0 {
		top := heap.Pop(pq).(pqItem)
		n, err := t.store.LoadNode(top.nodeID)
		if err != nil {
			return nil, fmt.Errorf("mtree: knn load node %d: %w", top.nodeID, err)
		}
		if n.Kind == KindLeaf {
			for _, e := range n.Leaves {
				dd, err := t.d(e.Obj, q)
				if err != nil {
					return nil, err
				}
				if !checkAdd(dd) {
					continue
				}
				it := e.Props.Docs.Iterator()
				for it.HasNext() {
					pushResult(it.Next(), dd)
				}
			}
			continue
		}
		for _, r := range n.Routes {
			dd, err := t.d(r.Obj, q)
			if err != nil {
				return nil, err
			}
			minDist := dd - r.Props.Radius
			if minDist < 0 {
				minDist = 0
			}
			if checkAdd(minDist) {
				heap.Push(pq, pqItem{minDist: minDist, nodeID: r.Props.Node})
			}
		}
	}

	out := make([]KNNResult, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(KNNResult)
	}
	return out, nil
}
