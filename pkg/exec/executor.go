package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/document"
	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/log"
	"github.com/cuemby/polydb/pkg/metrics"
	"github.com/cuemby/polydb/pkg/planner"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/txn"
	"github.com/cuemby/polydb/pkg/value"
)

// TableSchema is the slice of a table's definition the executor needs:
// its fields (for reference-policy dispatch), its indexes (for
// maintenance), and whether it is a relation table (for the graph
// pointer sweep).
type TableSchema struct {
	Fields  []catalog.FieldDef
	Indexes []catalog.IndexDef
	Edge    bool
	// StoreDiff mirrors catalog.ChangeFeedSpec.StoreDiff: whether the
	// table's buffered change-feed entries keep the full prev/curr pair
	// (true) or may be trimmed to just enough to know a change
	// happened (false). Carried on TableSchema rather than looked up
	// per-write, since Upsert/DeleteRecord already have it in hand.
	StoreDiff bool
}

// Catalog resolves the schema information an Executor needs. This core
// has no persisted DDL store yet (see DESIGN.md); callers wire a
// MapCatalog or their own lookup over whatever table directory they
// maintain.
type Catalog interface {
	Table(ns, db, tb string) (TableSchema, bool)
	// EdgeTables lists every relation table in (ns, db), so
	// DeleteEdgesTouching can sweep them for edges touching a deleted
	// node without a reverse graph index.
	EdgeTables(ns, db string) []string
	// StrictDatabase reports whether (ns, db) requires every table to
	// be predefined before a record can be written to it. When false,
	// Upsert defines a missing table on first write instead of
	// rejecting it.
	StrictDatabase(ns, db string) bool
	// DefineTable registers tb's schema, called by Upsert to persist a
	// table definition it created lazily.
	DefineTable(ns, db, tb string, schema TableSchema)
}

// MapCatalog is a Catalog backed by an in-memory map, keyed "ns/db/tb".
type MapCatalog struct {
	tables map[string]TableSchema
	ns, db string
	strict bool
}

// NewMapCatalog builds a MapCatalog scoped to one (ns, db): every
// Define call adds a table under that scope. strict mirrors
// catalog.Database.Strict: when false, Upsert may define tables lazily
// through DefineTable instead of requiring them predefined.
func NewMapCatalog(ns, db string, strict bool) *MapCatalog {
	return &MapCatalog{tables: make(map[string]TableSchema), ns: ns, db: db, strict: strict}
}

func (c *MapCatalog) tableKey(ns, db, tb string) string {
	return ns + "/" + db + "/" + tb
}

// Define registers tb's schema.
func (c *MapCatalog) Define(tb string, schema TableSchema) {
	c.DefineTable(c.ns, c.db, tb, schema)
}

func (c *MapCatalog) DefineTable(ns, db, tb string, schema TableSchema) {
	c.tables[c.tableKey(ns, db, tb)] = schema
}

func (c *MapCatalog) Table(ns, db, tb string) (TableSchema, bool) {
	s, ok := c.tables[c.tableKey(ns, db, tb)]
	return s, ok
}

func (c *MapCatalog) StrictDatabase(ns, db string) bool {
	return c.strict
}

func (c *MapCatalog) EdgeTables(ns, db string) []string {
	prefix := ns + "/" + db + "/"
	var out []string
	for k, s := range c.tables {
		if s.Edge && len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	return out
}

// Executor implements document.StatementExecutor against a live
// transaction, dispatching secondary-index maintenance through a
// Planner the same way the read path does. Scoped to a single (NS, DB):
// cross-database cascades are not part of this core (spec Non-goal:
// no cross-shard distributed transactions), so one Executor is built
// per top-level statement against whichever database it targets.
type Executor struct {
	NS, DB  string
	Catalog Catalog
	Planner *planner.Planner
}

// NewExecutor builds an Executor scoped to (ns, db).
func NewExecutor(ns, db string, cat Catalog, pl *planner.Planner) *Executor {
	return &Executor{NS: ns, DB: db, Catalog: cat, Planner: pl}
}

var errTableUnknown = errors.New("exec: unknown table")

// idBytesFor resolves a RecordId's key to its sortable byte encoding.
// Cascade calls (see pkg/document/purge.go's PurgeReferences) pass a
// RecordId whose Key is ALREADY the encoded byte form, wrapped as
// value.Bytes: that case is returned as-is rather than re-encoded.
func idBytesFor(key value.Value) ([]byte, error) {
	if b, ok := key.AsBytes(); ok {
		return b, nil
	}
	return document.EncodeIDKey(key)
}

// recordKey builds the /rec/ keyspace key for (table, idBytes) within
// this executor's (NS, DB).
func (e *Executor) recordKey(tb string, idBytes []byte) []byte {
	return keyspace.Record(e.NS, e.DB, tb, idBytes)
}

// loadRecord reads and decodes the current value of (tb, idBytes), or
// ok=false if it no longer exists.
func (e *Executor) loadRecord(tx kv.Tx, tb string, idBytes []byte) (value.Value, bool, error) {
	raw, err := tx.Get(e.recordKey(tb, idBytes), nil)
	if errors.Is(err, kv.ErrNotFound) {
		return value.Value{}, false, nil
	}
	if err != nil {
		return value.Value{}, false, err
	}
	v, err := value.Decode(raw)
	if err != nil {
		return value.Value{}, false, err
	}
	return v, true, nil
}

// deindex removes every secondary index entry a record's current value
// contributes, before the record itself is dropped.
func (e *Executor) deindex(tx kv.Tx, tb string, schema TableSchema, val value.Value, idBytes []byte) error {
	for _, ix := range schema.Indexes {
		ref := planner.IndexReference{NS: e.NS, DB: e.DB, Tb: tb, Def: ix}
		if err := e.Planner.MaintainIndex(tx, ref, idBytes, val, planner.MaintDelete); err != nil {
			return fmt.Errorf("exec: deindexing %s.%s: %w", tb, ix.Name, err)
		}
	}
	return nil
}

// Reindex writes every secondary index entry for a record's current
// value. Not part of the StatementExecutor interface (purge only
// removes); Upsert and UnsetField call it after writing a record, and
// it is exported for other write paths.
func (e *Executor) Reindex(tx kv.Tx, tb string, schema TableSchema, val value.Value, idBytes []byte) error {
	for _, ix := range schema.Indexes {
		ref := planner.IndexReference{NS: e.NS, DB: e.DB, Tb: tb, Def: ix}
		if err := e.Planner.MaintainIndex(tx, ref, idBytes, val, planner.MaintUpsert); err != nil {
			return fmt.Errorf("exec: indexing %s.%s: %w", tb, ix.Name, err)
		}
	}
	return nil
}

// DeleteRecord implements document.StatementExecutor. tx is the
// transaction facade: the deleted record's change-feed entry is
// buffered through it, not written directly, so it commits atomically
// with the rest of the statement.
func (e *Executor) DeleteRecord(ctx context.Context, tx *txn.Tx, rid record.RecordId, disablePermissions bool) error {
	idBytes, err := idBytesFor(rid.Key)
	if err != nil {
		return err
	}
	schema, ok := e.Catalog.Table(e.NS, e.DB, rid.Table)
	if !ok {
		return fmt.Errorf("%w: %q", errTableUnknown, rid.Table)
	}
	tlog := log.WithTable(e.NS, e.DB, rid.Table)
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RecordDeleteDuration, rid.Table)

	val, found, err := e.loadRecord(tx.Inner(), rid.Table, idBytes)
	if err != nil {
		return err
	}
	if !found {
		tlog.Debug().Msg("exec: delete target already gone")
		return nil // already gone: cascades may race a concurrent delete
	}

	if err := e.deindex(tx.Inner(), rid.Table, schema, val, idBytes); err != nil {
		return err
	}

	if schema.Edge {
		for _, dir := range []keyspace.GraphDir{keyspace.DirOut, keyspace.DirIn} {
			if err := tx.Inner().Del(keyspace.Graph(e.NS, e.DB, rid.Table, dir, idBytes)); err != nil {
				return err
			}
		}
	}

	encodedRID := record.RecordId{Table: rid.Table, Key: value.Bytes(idBytes)}
	if err := e.DeleteEdgesTouching(ctx, tx, encodedRID, disablePermissions); err != nil {
		return err
	}
	if err := document.PurgeReferences(ctx, tx, e.NS, e.DB, rid.Table, encodedRID, idBytes, schema.Fields, e); err != nil {
		return err
	}
	tlog.Debug().Msg("exec: record deleted")
	if err := tx.Inner().Del(e.recordKey(rid.Table, idBytes)); err != nil {
		return err
	}
	tx.BufferRecordChange(e.NS, e.DB, rid.Table, value.Bytes(idBytes), val, value.None(), schema.StoreDiff)
	metrics.RecordDeletesTotal.WithLabelValues(rid.Table).Inc()
	return nil
}

// DeleteEdgesTouching implements document.StatementExecutor. No reverse
// graph index exists from "node id" to "edges touching it" (the /graph/
// domain only records each edge's OWN forward/backward slots, cleared
// when the edge itself is purged), so this sweeps every relation
// table's records looking for an in/out field matching rid. Adequate
// for the single-node core this is; a deployment with large relation
// tables would want a real reverse index, out of scope here.
func (e *Executor) DeleteEdgesTouching(ctx context.Context, tx *txn.Tx, rid record.RecordId, disablePermissions bool) error {
	idBytes, err := idBytesFor(rid.Key)
	if err != nil {
		return err
	}
	for _, et := range e.Catalog.EdgeTables(e.NS, e.DB) {
		prefix := keyspace.RecordPrefix(e.NS, e.DB, et)
		start, end := keyspace.PrefixRange(prefix)
		kvs, err := tx.Inner().Scan(kv.KeyRange{Start: start, End: end}, 0, nil)
		if err != nil {
			return fmt.Errorf("exec: scanning edge table %s: %w", et, err)
		}
		for _, pair := range kvs {
			val, err := value.Decode(pair.Value)
			if err != nil {
				return fmt.Errorf("exec: decoding edge record in %s: %w", et, err)
			}
			if !edgeTouches(val, rid.Table, idBytes) {
				continue
			}
			edgeIDBytes := pair.Key[len(prefix):]
			edgeRID := record.RecordId{Table: et, Key: value.Bytes(append([]byte{}, edgeIDBytes...))}
			if err := e.DeleteRecord(ctx, tx, edgeRID, disablePermissions); err != nil {
				return err
			}
		}
	}
	return nil
}

// edgeTouches reports whether edge's in or out field names (table,
// idBytes) as an endpoint.
func edgeTouches(edge value.Value, table string, idBytes []byte) bool {
	for _, field := range []string{"in", "out"} {
		fv, ok := edge.Field(field)
		if !ok {
			continue
		}
		rid, ok := fv.AsRecordID()
		if !ok || rid.Table != table {
			continue
		}
		keyBytes, err := idBytesFor(rid.Key)
		if err != nil {
			continue
		}
		if string(keyBytes) == string(idBytes) {
			return true
		}
	}
	return false
}

// UnsetField implements document.StatementExecutor.
func (e *Executor) UnsetField(ctx context.Context, tx *txn.Tx, rid record.RecordId, fieldPath string, match value.Value, disablePermissions bool) error {
	idBytes, err := idBytesFor(rid.Key)
	if err != nil {
		return err
	}
	schema, ok := e.Catalog.Table(e.NS, e.DB, rid.Table)
	if !ok {
		return fmt.Errorf("%w: %q", errTableUnknown, rid.Table)
	}
	val, found, err := e.loadRecord(tx.Inner(), rid.Table, idBytes)
	if err != nil || !found {
		return err
	}
	next := document.UnsetField(val, fieldPath, match)

	if err := e.deindex(tx.Inner(), rid.Table, schema, val, idBytes); err != nil {
		return err
	}
	if err := e.Reindex(tx.Inner(), rid.Table, schema, next, idBytes); err != nil {
		return err
	}
	if err := tx.Inner().Set(e.recordKey(rid.Table, idBytes), value.Encode(next)); err != nil {
		return err
	}
	tx.BufferRecordChange(e.NS, e.DB, rid.Table, value.Bytes(idBytes), val, next, schema.StoreDiff)
	return nil
}

// errCustomStatementsUnsupported is returned by RunCustom: this core
// carries no statement parser or expression-language runtime (Non-goal:
// no SQL-compliant language surface), so a field's ON DELETE THEN
// custom statement cannot be evaluated here. Schemas that need it must
// use a cascade policy this core does implement (Ignore/Reject/Cascade/
// Unset).
var errCustomStatementsUnsupported = errors.New("exec: custom ON DELETE statements are not supported by this executor")

// RunCustom implements document.StatementExecutor.
func (e *Executor) RunCustom(ctx context.Context, tx *txn.Tx, stmt string, this, reference value.Value, disablePermissions bool) error {
	return fmt.Errorf("%w: %q", errCustomStatementsUnsupported, stmt)
}
