// Package planner binds a table's IndexDef catalog entries to live
// index handles and, at iterate time, to concrete ThingIterators: one
// method per index kind dispatching to the right binding/iterator
// constructor (Idx/Uniq/Search/FullText/MTree).
package planner

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/sequence"
)

const (
	tagFwd byte = 0x01 // record-key bytes -> uint64 doc id
	tagRev byte = 0x02 // uint64 doc id -> record-key bytes
)

// indexDataKey builds one key under an index's IndexData payload area.
// A single byte sub-tag (the first byte of suffix) partitions that
// area between a binding's own state (M-Tree nodes, full-text
// postings) and the shared DocIDRegistry entries above, so the two
// never collide.
func indexDataKey(ns, db, tb string, ixID uint32, suffix []byte) []byte {
	return keyspace.IndexData(ns, db, tb, ixID, suffix)
}

// DocIDRegistry assigns a dense uint64 doc id to each record key
// indexed by an M-Tree or full-text index (both address documents by
// uint64, not by the record key's arbitrary Value encoding — see
// pkg/mtree and pkg/fulltext's package docs). The mapping lives under
// the index's own IndexData payload area, alongside the index's other
// state, keyed off the same (ns, db, tb, ixID) coordinates.
type DocIDRegistry struct {
	ns, db, tb string
	ixID       uint32
	seq        *sequence.Allocator
}

// NewDocIDRegistry builds a registry for one index. Its doc ids come
// from a dedicated sequence.Allocator (scope "ixdoc", named after
// ns/db/tb/ixID) so they never collide with any other counter sharing
// the same Tx.
func NewDocIDRegistry(ns, db, tb string, ixID uint32) *DocIDRegistry {
	return &DocIDRegistry{
		ns: ns, db: db, tb: tb, ixID: ixID,
		seq: sequence.New("ixdoc", fmt.Sprintf("%s/%s/%s/%d", ns, db, tb, ixID)),
	}
}

func (r *DocIDRegistry) fwdKey(recordKey []byte) []byte {
	return keyspace.IndexData(r.ns, r.db, r.tb, r.ixID, append([]byte{tagFwd}, recordKey...))
}

func (r *DocIDRegistry) revKey(docID uint64) []byte {
	var buf [9]byte
	buf[0] = tagRev
	binary.BigEndian.PutUint64(buf[1:], docID)
	return keyspace.IndexData(r.ns, r.db, r.tb, r.ixID, buf[:])
}

// ResolveDocID returns the doc id already assigned to recordKey, or
// allocates and persists a new one.
func (r *DocIDRegistry) ResolveDocID(tx kv.Tx, recordKey []byte) (uint64, error) {
	fwd := r.fwdKey(recordKey)
	if raw, err := tx.Get(fwd, nil); err == nil {
		if len(raw) != 8 {
			return 0, fmt.Errorf("planner: corrupt doc id entry for %x", recordKey)
		}
		return binary.BigEndian.Uint64(raw), nil
	} else if err != kv.ErrNotFound {
		return 0, err
	}

	id, err := r.seq.Next(tx)
	if err != nil {
		return 0, fmt.Errorf("planner: allocate doc id: %w", err)
	}
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	if err := tx.Set(fwd, idBuf[:]); err != nil {
		return 0, err
	}
	if err := tx.Set(r.revKey(id), recordKey); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordKeyFor reverses a doc id back to its record key bytes.
func (r *DocIDRegistry) RecordKeyFor(tx kv.Tx, docID uint64) ([]byte, bool, error) {
	raw, err := tx.Get(r.revKey(docID), nil)
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Forget removes recordKey's doc id mapping (both directions), used
// when a document is removed from the index.
func (r *DocIDRegistry) Forget(tx kv.Tx, recordKey []byte) error {
	fwd := r.fwdKey(recordKey)
	raw, err := tx.Get(fwd, nil)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Del(fwd); err != nil {
		return err
	}
	if len(raw) == 8 {
		if err := tx.Del(r.revKey(binary.BigEndian.Uint64(raw))); err != nil {
			return err
		}
	}
	return nil
}
