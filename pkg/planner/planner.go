package planner

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

// IndexReference names one logical index: the (ns, db, tb) a query
// runs against and the index definition it was planned to use.
type IndexReference struct {
	NS, DB, Tb string
	Def        catalog.IndexDef
}

func (ir IndexReference) key() string {
	return fmt.Sprintf("%s/%s/%s/%s", ir.NS, ir.DB, ir.Tb, ir.Def.Name)
}

// ThingIterator yields matching record ids in whatever order the
// backing index produces them (ascending distance for MTree, backend
// scan order for Idx/Uniq, match order for Search/FullText).
type ThingIterator interface {
	// Next returns the next record id, or ok=false once exhausted.
	Next(ctx context.Context) (rid record.RecordId, ok bool, err error)
	Close() error
}

// IndexOption is one planner decision: "use index Ref with operator Op
// and comparison value Value" (optionally Upper for a bounded range, or
// K for a KNN search).
type IndexOption struct {
	Ref   IndexReference
	Op    CompareOp
	Value value.Value
	Upper value.Value // for Op == OpRange
	K     int         // for Op == OpKNN
}

// CompareOp selects how an IndexOption's Value(s) bound the scan.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpRange
	OpKNN
	OpMatches
)

// PerIndexReferenceIndex is the live handle for one logical index,
// shared by every expression that references it within a single
// planned statement.
type PerIndexReferenceIndex struct {
	Ref  IndexReference
	mt   *mtreeBinding
	ft   *fulltextBinding
	std  *StdIndex
}

// PerExpressionEntry holds per-expression precomputed state: a MATCHES
// clause's query term set, or a brute-force KNN candidate list for
// expressions the planner chose not to back with an index.
type PerExpressionEntry struct {
	QueryTerms []string
	BruteForce *KNNPriorityList
}

// MatchRef decouples a MATCHES clause's runtime state from expression
// identity so multiple expressions can share one evaluation.
type MatchRef int

// PerMatchRefEntry is the runtime state shared by every expression
// referencing the same MatchRef.
type PerMatchRefEntry struct {
	MatchedDocs map[uint64]bool
}

// Planner holds the per-statement binding maps, built once per
// statement and consumed by every iterator it opens.
type Planner struct {
	tx kv.Tx

	mu         sync.Mutex
	irMap      map[string]*PerIndexReferenceIndex
	expEntries map[interface{}]*PerExpressionEntry
	mrEntries  map[MatchRef]*PerMatchRefEntry
}

// New creates a planner bound to tx. tx must outlive every iterator
// this planner opens.
func New(tx kv.Tx) *Planner {
	return &Planner{
		tx:         tx,
		irMap:      make(map[string]*PerIndexReferenceIndex),
		expEntries: make(map[interface{}]*PerExpressionEntry),
		mrEntries:  make(map[MatchRef]*PerMatchRefEntry),
	}
}

// BindIndex returns the shared handle for ref, building it on first
// reference. Duplicate calls for the same (ns,db,tb,index name) return
// the same handle: one live handle per logical index, shared by every
// expression referring to it within the statement.
func (p *Planner) BindIndex(ref IndexReference) (*PerIndexReferenceIndex, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := ref.key()
	if existing, ok := p.irMap[k]; ok {
		return existing, nil
	}

	entry := &PerIndexReferenceIndex{Ref: ref}
	switch ref.Def.Kind {
	case catalog.IndexMTree:
		b, err := newMtreeBinding(p.tx, ref)
		if err != nil {
			return nil, err
		}
		entry.mt = b
	case catalog.IndexSearch, catalog.IndexFullText:
		entry.ft = newFulltextBinding(p.tx, ref)
	case catalog.IndexStandard, catalog.IndexUnique:
		entry.std = NewStdIndex(ref.NS, ref.DB, ref.Tb, ref.Def)
	case catalog.IndexHNSW:
		return nil, fmt.Errorf("planner: HNSW index kind is not implemented in this core")
	default:
		return nil, fmt.Errorf("planner: unknown index kind %d", ref.Def.Kind)
	}
	p.irMap[k] = entry
	return entry, nil
}

// ExpEntry returns (creating if needed) the per-expression entry keyed
// by expr's identity (callers pass a pointer to their parsed
// expression node).
func (p *Planner) ExpEntry(expr interface{}) *PerExpressionEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.expEntries[expr]
	if !ok {
		e = &PerExpressionEntry{}
		p.expEntries[expr] = e
	}
	return e
}

// MatchEntry returns (creating if needed) the shared runtime state for
// ref. A second call with a ref already bound to a DIFFERENT MATCHES
// clause's term set than the first is a planner bug (duplicate MatchRef
// at build time): a caller should only ever build one MatchRef per
// logical MATCHES clause.
func (p *Planner) MatchEntry(ref MatchRef) *PerMatchRefEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.mrEntries[ref]
	if !ok {
		e = &PerMatchRefEntry{MatchedDocs: make(map[uint64]bool)}
		p.mrEntries[ref] = e
	}
	return e
}

// NewIterator dispatches opt's index kind to produce a concrete
// ThingIterator.
func (p *Planner) NewIterator(ctx context.Context, opt IndexOption) (ThingIterator, error) {
	entry, err := p.BindIndex(opt.Ref)
	if err != nil {
		return nil, err
	}
	switch opt.Ref.Def.Kind {
	case catalog.IndexMTree:
		if opt.Op != OpKNN {
			return nil, fmt.Errorf("planner: MTree index only supports KNN iteration")
		}
		return entry.mt.knnIterator(p.tx, opt.Value, opt.K)
	case catalog.IndexSearch, catalog.IndexFullText:
		if opt.Op != OpMatches {
			return nil, fmt.Errorf("planner: Search/FullText index only supports MATCHES iteration")
		}
		terms, _ := opt.Value.AsArray()
		var termStrs []string
		for _, t := range terms {
			if s, ok := t.AsString(); ok {
				termStrs = append(termStrs, s)
			}
		}
		return entry.ft.matchIterator(p.tx, termStrs)
	case catalog.IndexStandard, catalog.IndexUnique:
		switch opt.Op {
		case OpEqual:
			return entry.std.equalityIterator(p.tx, opt.Value)
		case OpRange:
			return entry.std.rangeIterator(p.tx, opt.Value, opt.Upper)
		default:
			return nil, fmt.Errorf("planner: Idx/Uniq index does not support operator %d", opt.Op)
		}
	default:
		return nil, fmt.Errorf("planner: cannot build iterator for index kind %d", opt.Ref.Def.Kind)
	}
}

// KNNPriorityList is the brute-force fallback for KNN expressions the
// planner chose not to back with an M-Tree: the outer iteration code
// pushes (dist, record_id) pairs as it scans, and
// BuildBruteforceKNNResult materializes the final top-K set once the
// scan finishes.
type KNNPriorityList struct {
	K     int
	items []knnCandidate
}

type knnCandidate struct {
	dist float64
	rid  record.RecordId
}

// NewKNNPriorityList creates a brute-force candidate list bounded to k.
func NewKNNPriorityList(k int) *KNNPriorityList {
	return &KNNPriorityList{K: k}
}

// Push records one candidate. Candidates beyond K are pruned lazily in
// BuildBruteforceKNNResult rather than on every push, since a sorted
// insert per push would cost O(n) for no benefit until the final sort.
func (l *KNNPriorityList) Push(dist float64, rid record.RecordId) {
	l.items = append(l.items, knnCandidate{dist: dist, rid: rid})
}

// BuildBruteforceKNNResult sorts all pushed candidates ascending by
// distance and returns the top K record ids.
func (l *KNNPriorityList) BuildBruteforceKNNResult() []record.RecordId {
	sorted := append([]knnCandidate(nil), l.items...)
	for i := 1; i < len(sorted); i++ {
		j := i
		for j > 0 && sorted[j-1].dist > sorted[j].dist {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
			j--
		}
	}
	if l.K > 0 && len(sorted) > l.K {
		sorted = sorted[:l.K]
	}
	out := make([]record.RecordId, len(sorted))
	for i, c := range sorted {
		out[i] = c.rid
	}
	return out
}
