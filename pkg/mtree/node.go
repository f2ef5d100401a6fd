// Package mtree implements a distance-parameterized M-Tree: a metric
// tree persisted as pages in a KV store; every node read and write goes
// straight through the caller's Tx.
// Document-id sets at the leaves use
// github.com/RoaringBitmap/roaring/v2/roaring64.Bitmap rather than a
// hand-rolled set.
package mtree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/vector"
)

// NodeID identifies a page of the tree within one index's payload area.
type NodeID uint64

// ObjectProperties annotates an object stored in a leaf node.
type ObjectProperties struct {
	ParentDist float64
	Docs       *roaring64.Bitmap
}

// RoutingProperties annotates a routing object stored in an internal
// node: the subtree it leads to, that subtree's covering radius, and
// this object's distance to its own parent (for incremental pruning).
type RoutingProperties struct {
	Node       NodeID
	Radius     float64
	ParentDist float64
}

// NodeKind distinguishes leaves (store objects + doc ids) from internal
// nodes (store routing objects pointing at child subtrees).
type NodeKind byte

const (
	KindLeaf     NodeKind = 1
	KindInternal NodeKind = 2
)

// leafEntry and routingEntry pair a vector with its properties. Node
// keeps entries in a slice sorted by the vector's canonical byte
// encoding, standing in for the BTreeMap<SharedVector, ...> the
// algorithm description assumes: ordering here is for deterministic
// iteration, not semantic significance (the tree algorithms never rely
// on key order, only distance).
type leafEntry struct {
	Obj   vector.Vector
	Props ObjectProperties
}

type routingEntry struct {
	Obj   vector.Vector
	Props RoutingProperties
}

// Node is one page of the tree: either a leaf or an internal node, never
// both. Exactly one of Leaves/Routes is populated depending on Kind.
type Node struct {
	Kind   NodeKind
	Leaves []leafEntry
	Routes []routingEntry
}

func sortLeaves(entries []leafEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(encodeVector(entries[i].Obj), encodeVector(entries[j].Obj)) < 0
	})
}

func sortRoutes(entries []routingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(encodeVector(entries[i].Obj), encodeVector(entries[j].Obj)) < 0
	})
}

func encodeVector(v vector.Vector) []byte {
	buf := make([]byte, 0, 8*len(v))
	for _, f := range v {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], float64BitsSortable(f))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// float64BitsSortable maps a float64 to a uint64 whose big-endian byte
// order matches float ordering (flip sign bit for positives, invert all
// bits for negatives) - used only to get a deterministic sort key for
// node entries, not for the tree's distance computations.
func float64BitsSortable(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// State is the tree's persisted metadata.
type State struct {
	Root       *NodeID
	NextNodeID NodeID
	Capacity   int
	Generation uint64
}

// Store persists nodes and tree state under a single index's payload
// area (keyspace.IndexData), through the caller's kv.Tx. It has no
// process-local cache beyond what the underlying kv.Tx's own
// read-your-writes guarantee already provides.
type Store struct {
	tx      kv.Tx
	keyFunc func(suffix []byte) []byte
}

// NewStore wraps tx with a key-building function (usually a closure
// over keyspace.IndexData(ns, db, tb, ixID, suffix)).
func NewStore(tx kv.Tx, keyFunc func(suffix []byte) []byte) *Store {
	return &Store{tx: tx, keyFunc: keyFunc}
}

var stateSuffix = []byte{0x00}

func nodeSuffix(id NodeID) []byte {
	buf := make([]byte, 9)
	buf[0] = 0x01
	binary.BigEndian.PutUint64(buf[1:], uint64(id))
	return buf
}

// LoadState reads the tree's metadata, returning a fresh zero State if
// none has been written yet.
func (s *Store) LoadState() (*State, error) {
	raw, err := s.tx.Get(s.keyFunc(stateSuffix), nil)
	if err == kv.ErrNotFound {
		return &State{Capacity: 32}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mtree: load state: %w", err)
	}
	return decodeState(raw)
}

// SaveState persists the tree's metadata.
func (s *Store) SaveState(st *State) error {
	return s.tx.Set(s.keyFunc(stateSuffix), encodeState(st))
}

// LoadNode fetches a node page by id.
func (s *Store) LoadNode(id NodeID) (*Node, error) {
	raw, err := s.tx.Get(s.keyFunc(nodeSuffix(id)), nil)
	if err != nil {
		return nil, fmt.Errorf("mtree: load node %d: %w", id, err)
	}
	return decodeNode(raw)
}

// SaveNode persists a node page.
func (s *Store) SaveNode(id NodeID, n *Node) error {
	return s.tx.Set(s.keyFunc(nodeSuffix(id)), encodeNode(n))
}

// DeleteNode removes a node page (used when a node is merged away or
// the root collapses).
func (s *Store) DeleteNode(id NodeID) error {
	return s.tx.Del(s.keyFunc(nodeSuffix(id)))
}

// AllocNode reserves the next NodeID, advancing st.NextNodeID. Callers
// must SaveState afterward.
func (st *State) AllocNode() NodeID {
	id := st.NextNodeID
	st.NextNodeID++
	return id
}

func encodeState(st *State) []byte {
	buf := make([]byte, 0, 32)
	var hasRoot byte
	var rootID uint64
	if st.Root != nil {
		hasRoot = 1
		rootID = uint64(*st.Root)
	}
	buf = append(buf, hasRoot)
	buf = appendU64(buf, rootID)
	buf = appendU64(buf, uint64(st.NextNodeID))
	buf = appendU64(buf, uint64(st.Capacity))
	buf = appendU64(buf, st.Generation)
	return buf
}

func decodeState(b []byte) (*State, error) {
	if len(b) != 1+8*4 {
		return nil, fmt.Errorf("mtree: corrupt state (%d bytes)", len(b))
	}
	hasRoot := b[0]
	b = b[1:]
	rootID, b := readU64(b)
	next, b := readU64(b)
	cap_, b := readU64(b)
	gen, _ := readU64(b)
	st := &State{NextNodeID: NodeID(next), Capacity: int(cap_), Generation: gen}
	if hasRoot != 0 {
		id := NodeID(rootID)
		st.Root = &id
	}
	return st, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readU64(b []byte) (uint64, []byte) {
	return binary.BigEndian.Uint64(b[:8]), b[8:]
}

func encodeNode(n *Node) []byte {
	buf := []byte{byte(n.Kind)}
	switch n.Kind {
	case KindLeaf:
		buf = appendU64(buf, uint64(len(n.Leaves)))
		for _, e := range n.Leaves {
			buf = appendVector(buf, e.Obj)
			buf = appendF64(buf, e.Props.ParentDist)
			buf = appendBitmap(buf, e.Props.Docs)
		}
	case KindInternal:
		buf = appendU64(buf, uint64(len(n.Routes)))
		for _, e := range n.Routes {
			buf = appendVector(buf, e.Obj)
			buf = appendU64(buf, uint64(e.Props.Node))
			buf = appendF64(buf, e.Props.Radius)
			buf = appendF64(buf, e.Props.ParentDist)
		}
	}
	return buf
}

func decodeNode(b []byte) (*Node, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("mtree: empty node payload")
	}
	kind := NodeKind(b[0])
	b = b[1:]
	n := &Node{Kind: kind}
	count, b := readU64(b)
	switch kind {
	case KindLeaf:
		for i := uint64(0); i < count; i++ {
			var obj vector.Vector
			obj, b = readVector(b)
			pd, rest := readF64(b)
			b = rest
			bm, rest2, err := readBitmap(b)
			if err != nil {
				return nil, err
			}
			b = rest2
			n.Leaves = append(n.Leaves, leafEntry{Obj: obj, Props: ObjectProperties{ParentDist: pd, Docs: bm}})
		}
	case KindInternal:
		for i := uint64(0); i < count; i++ {
			var obj vector.Vector
			obj, b = readVector(b)
			nodeID, rest := readU64(b)
			b = rest
			radius, rest2 := readF64(b)
			b = rest2
			pd, rest3 := readF64(b)
			b = rest3
			n.Routes = append(n.Routes, routingEntry{Obj: obj, Props: RoutingProperties{Node: NodeID(nodeID), Radius: radius, ParentDist: pd}})
		}
	default:
		return nil, fmt.Errorf("mtree: unknown node kind %d", kind)
	}
	return n, nil
}

func appendVector(buf []byte, v vector.Vector) []byte {
	buf = appendU64(buf, uint64(len(v)))
	for _, f := range v {
		buf = appendF64(buf, f)
	}
	return buf
}

func readVector(b []byte) (vector.Vector, []byte) {
	n, b := readU64(b)
	v := make(vector.Vector, n)
	for i := uint64(0); i < n; i++ {
		v[i], b = readF64(b)
	}
	return v, b
}

func appendF64(buf []byte, f float64) []byte {
	return appendU64(buf, math.Float64bits(f))
}

func readF64(b []byte) (float64, []byte) {
	u, b := readU64(b)
	return math.Float64frombits(u), b
}

func appendBitmap(buf []byte, bm *roaring64.Bitmap) []byte {
	if bm == nil {
		bm = roaring64.New()
	}
	var w bytes.Buffer
	_, _ = bm.WriteTo(&w)
	buf = appendU64(buf, uint64(w.Len()))
	return append(buf, w.Bytes()...)
}

func readBitmap(b []byte) (*roaring64.Bitmap, []byte, error) {
	n, b := readU64(b)
	if uint64(len(b)) < n {
		return nil, nil, fmt.Errorf("mtree: truncated bitmap payload")
	}
	bm := roaring64.New()
	if _, err := bm.ReadFrom(bytes.NewReader(b[:n])); err != nil {
		return nil, nil, fmt.Errorf("mtree: decode bitmap: %w", err)
	}
	return bm, b[n:], nil
}
