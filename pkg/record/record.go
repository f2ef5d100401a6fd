// Package record defines the Record and CursorDoc types the document
// mutator (pkg/document) and query executor (pkg/planner, pkg/exec)
// pass around. Plain structs with no behavior attached.
package record

import "github.com/cuemby/polydb/pkg/value"

// RecordId names a single record: a table plus its key component
// within that table (the Key is itself a value.Value — usually a
// String or Int, but any persistable kind is legal).
type RecordId struct {
	Table string
	Key   value.Value
}

func (r RecordId) String() string {
	return r.Table + ":" + r.Key.String()
}

// Record is a stored document: its identity, its data, and two flags
// the mutator needs to pick the right lifecycle transition.
type Record struct {
	ID      RecordId
	Data    value.Value // always Kind == KindObject
	Created bool        // true if this write created the record (vs. updated one)
	Edge    bool        // true if this is a Relation-table record (carries in/out)
}

// CursorDoc threads a record through the mutator's state machine:
// Original is the pre-statement snapshot (nil before load), Incoming
// is the statement's data payload (CONTENT/MERGE/...), and Current is
// the in-progress result, finalized into Record.Data at the Validated
// step.
type CursorDoc struct {
	ID       RecordId
	Original *value.Value // nil if this is a new record
	Incoming value.Value
	Current  value.Value
	IsNew    bool
}

// AsRecord snapshots the cursor's current state into a Record ready to
// be stored.
func (c *CursorDoc) AsRecord(edge bool) Record {
	return Record{ID: c.ID, Data: c.Current, Created: c.IsNew, Edge: edge}
}
