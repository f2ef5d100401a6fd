// Package changefeed buffers per-record and per-table change entries
// during a transaction and flushes them atomically at commit time under
// a single monotonic VersionStamp. Unlike a process-wide event bus, the
// buffer here is scoped to one transaction, with a collapsing dedupe
// map so repeated updates to the same record within a transaction
// collapse into a single entry.
package changefeed

import (
	"fmt"

	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/value"
)

// VersionStamp is a 10-byte big-endian monotonic timestamp. The top 8
// bytes are a physical clock reading in
// nanoseconds; the low 2 bytes break ties within the same nanosecond
// (always 0 here since one VersionStamp is read once per commit).
type VersionStamp [10]byte

// NewVersionStamp derives a VersionStamp from a transaction's monotonic
// clock reading.
func NewVersionStamp(nanos int64) VersionStamp {
	var vs VersionStamp
	u := uint64(nanos)
	for i := 7; i >= 0; i-- {
		vs[i] = byte(u)
		u >>= 8
	}
	return vs
}

func (vs VersionStamp) Bytes() []byte { return vs[:] }

type recordKey struct {
	ns, db, tb string
	id         string // value.Encode(id key component)
}

// BufferedRecordChange is one buffered record mutation, collapsed per
// (ns, db, tb, id) as later updates arrive within the same tx.
type BufferedRecordChange struct {
	NS, DB, TB string
	ID         value.Value
	Prev       value.Value // None() if the record didn't previously exist
	Curr       value.Value // None() if the record was deleted
	StoreDiff  bool
}

// BufferedTableChange records a (re)definition event for a table.
type BufferedTableChange struct {
	NS, DB, TB string
	Definition value.Value
}

// Buffer accumulates changes for one transaction.
type Buffer struct {
	byRecord map[recordKey]*BufferedRecordChange
	order    []recordKey // insertion order of first touch, for deterministic flush order
	tables   []BufferedTableChange
}

// New creates an empty per-transaction buffer.
func New() *Buffer {
	return &Buffer{byRecord: make(map[recordKey]*BufferedRecordChange)}
}

// RecordChange appends (or collapses into an existing entry) a record
// mutation. Multiple updates to the same record within one tx collapse
// to first-prev/last-curr.
func (b *Buffer) RecordChange(ns, db, tb string, id value.Value, prev, curr value.Value, storeDiff bool) {
	k := recordKey{ns, db, tb, string(value.Encode(id))}
	if existing, ok := b.byRecord[k]; ok {
		existing.Curr = curr
		existing.StoreDiff = existing.StoreDiff || storeDiff
		return
	}
	b.byRecord[k] = &BufferedRecordChange{NS: ns, DB: db, TB: tb, ID: id, Prev: prev, Curr: curr, StoreDiff: storeDiff}
	b.order = append(b.order, k)
}

// TableChange appends a (re)definition event.
func (b *Buffer) TableChange(ns, db, tb string, definition value.Value) {
	b.tables = append(b.tables, BufferedTableChange{NS: ns, DB: db, TB: tb, Definition: definition})
}

// Flush writes every buffered entry under /cf/{ts}/{tb}, using one
// VersionStamp for the whole batch. Entries whose prev and curr are
// equal after collapsing (a net no-op, e.g. an UPDATE immediately
// reverted within the same tx) are dropped rather than written, per the
// Open Question decision recorded in SPEC_FULL.md. If any write fails,
// the caller must cancel the whole transaction (the timestamp is only
// valid for this one flush).
func (b *Buffer) Flush(tx kv.Tx, vs VersionStamp) error {
	for _, k := range b.order {
		c := b.byRecord[k]
		if value.Equal(c.Prev, c.Curr) {
			continue
		}
		entry := value.EmptyObject().
			WithField("prev", c.Prev).
			WithField("curr", c.Curr).
			WithField("store_diff", value.Bool(c.StoreDiff))
		key := keyspace.ChangeFeed(c.NS, c.DB, vs.Bytes(), c.TB)
		if err := tx.Set(key, value.Encode(entry)); err != nil {
			return fmt.Errorf("changefeed: flush record entry: %w", err)
		}
	}
	for _, tc := range b.tables {
		entry := value.EmptyObject().WithField("definition", tc.Definition)
		key := keyspace.ChangeFeed(tc.NS, tc.DB, vs.Bytes(), tc.TB)
		if err := tx.Set(key, value.Encode(entry)); err != nil {
			return fmt.Errorf("changefeed: flush table entry: %w", err)
		}
	}
	return nil
}

// Empty reports whether there is nothing to flush.
func (b *Buffer) Empty() bool {
	return len(b.byRecord) == 0 && len(b.tables) == 0
}
