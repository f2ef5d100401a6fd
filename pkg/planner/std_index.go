package planner

import (
	"context"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/document"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

const stdIndexTag byte = 0x30

// StdIndex is a single-column Idx/Uniq secondary index: an ordered
// column-value -> record-key mapping under the index's IndexData
// payload area. A Uniq index stores one record key per column value;
// an Idx index appends the record key to the index key itself so
// duplicates coexist side by side, ordered first by value then by
// record key.
type StdIndex struct {
	ns, db, tb string
	def        catalog.IndexDef
}

// NewStdIndex builds a StdIndex handle for def.
func NewStdIndex(ns, db, tb string, def catalog.IndexDef) *StdIndex {
	return &StdIndex{ns: ns, db: db, tb: tb, def: def}
}

func (s *StdIndex) entryKey(colKey []byte, recordKey []byte) []byte {
	suffix := append([]byte{stdIndexTag}, colKey...)
	if s.def.Kind == catalog.IndexStandard {
		suffix = append(suffix, recordKey...)
	}
	return indexDataKey(s.ns, s.db, s.tb, s.def.ID, suffix)
}

func (s *StdIndex) prefixFor(colKey []byte) []byte {
	return indexDataKey(s.ns, s.db, s.tb, s.def.ID, append([]byte{stdIndexTag}, colKey...))
}

// Put records one (column value, record key) entry.
func (s *StdIndex) Put(tx kv.Tx, colVal value.Value, recordKey []byte) error {
	colKey, err := EncodeIndexKeyBytes(colVal)
	if err != nil {
		return err
	}
	key := s.entryKey(colKey, recordKey)
	if s.def.Kind == catalog.IndexUnique {
		return tx.Putc(key, recordKey, nil)
	}
	return tx.Set(key, recordKey)
}

// Del removes one (column value, record key) entry.
func (s *StdIndex) Del(tx kv.Tx, colVal value.Value, recordKey []byte) error {
	colKey, err := EncodeIndexKeyBytes(colVal)
	if err != nil {
		return err
	}
	return tx.Del(s.entryKey(colKey, recordKey))
}

func (s *StdIndex) equalityIterator(tx kv.Tx, colVal value.Value) (ThingIterator, error) {
	colKey, err := EncodeIndexKeyBytes(colVal)
	if err != nil {
		return nil, err
	}
	start := s.prefixFor(colKey)
	end := incrementBytes(start)
	kvs, err := tx.Scan(kv.KeyRange{Start: start, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	return newStdIterator(s, kvs), nil
}

func (s *StdIndex) rangeIterator(tx kv.Tx, from, to value.Value) (ThingIterator, error) {
	var start, end []byte
	if !from.IsNone() {
		colKey, err := EncodeIndexKeyBytes(from)
		if err != nil {
			return nil, err
		}
		start = indexDataKey(s.ns, s.db, s.tb, s.def.ID, append([]byte{stdIndexTag}, colKey...))
	} else {
		start = indexDataKey(s.ns, s.db, s.tb, s.def.ID, []byte{stdIndexTag})
	}
	if !to.IsNone() {
		colKey, err := EncodeIndexKeyBytes(to)
		if err != nil {
			return nil, err
		}
		end = indexDataKey(s.ns, s.db, s.tb, s.def.ID, append([]byte{stdIndexTag}, colKey...))
	} else {
		end = incrementBytes(indexDataKey(s.ns, s.db, s.tb, s.def.ID, []byte{stdIndexTag}))
	}
	kvs, err := tx.Scan(kv.KeyRange{Start: start, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	return newStdIterator(s, kvs), nil
}

type stdIterator struct {
	s   *StdIndex
	kvs []kv.KV
	pos int
}

func newStdIterator(s *StdIndex, kvs []kv.KV) *stdIterator {
	return &stdIterator{s: s, kvs: kvs}
}

func (it *stdIterator) Next(ctx context.Context) (record.RecordId, bool, error) {
	if it.pos >= len(it.kvs) {
		return record.RecordId{}, false, nil
	}
	rec := it.kvs[it.pos]
	it.pos++
	return record.RecordId{Table: it.s.tb, Key: value.Bytes(rec.Value)}, true, nil
}

func (it *stdIterator) Close() error { return nil }

// EncodeIndexKeyBytes encodes a column Value into sortable bytes for
// use as (part of) a secondary index key, reusing the same lexical
// encoders the record-key codec uses.
func EncodeIndexKeyBytes(v value.Value) ([]byte, error) {
	return document.EncodeIDKey(v)
}

// incrementBytes returns the smallest byte string greater than every
// string with prefix p, for building a half-open upper bound from an
// inclusive prefix (mirrors keyspace.PrefixRange's trailing-0xFF
// handling).
func incrementBytes(p []byte) []byte {
	end := append([]byte(nil), p...)
	i := len(end) - 1
	for i >= 0 && end[i] == 0xFF {
		i--
	}
	if i < 0 {
		return nil
	}
	end = end[:i+1]
	end[i]++
	return end
}
