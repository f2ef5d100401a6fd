package exec

import (
	"fmt"

	"github.com/cuemby/polydb/pkg/document"
	"github.com/cuemby/polydb/pkg/log"
	"github.com/cuemby/polydb/pkg/metrics"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/txn"
	"github.com/cuemby/polydb/pkg/value"
)

// Upsert runs doc through the document mutator's write state machine
// (DefaultRecordData, then clause) and persists the result, maintaining
// every secondary index the table carries: the old value's entries are
// dropped first (for an update; a no-op for a new record, since
// loadRecord finds nothing), then the new value is indexed. This is the
// write-side counterpart to DeleteRecord: the two share deindex/Reindex
// so a record's indexes never observe a value that was never actually
// stored. tx is the transaction facade, not the raw store: Upsert
// buffers the record's change-feed entry through it, so the entry
// commits atomically with everything else the surrounding statement
// buffered.
func (e *Executor) Upsert(tx *txn.Tx, doc *record.CursorDoc, clause document.Clause, in, out *value.Value) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RecordUpsertDuration, doc.ID.Table)

	if err := document.DefaultRecordData(doc, in, out); err != nil {
		return err
	}
	if err := document.ProcessRecordData(doc, clause); err != nil {
		return err
	}

	schema, ok := e.Catalog.Table(e.NS, e.DB, doc.ID.Table)
	if !ok {
		if e.Catalog.StrictDatabase(e.NS, e.DB) {
			return fmt.Errorf("%w: %q", errTableUnknown, doc.ID.Table)
		}
		schema = TableSchema{}
		e.Catalog.DefineTable(e.NS, e.DB, doc.ID.Table, schema)
		log.WithTable(e.NS, e.DB, doc.ID.Table).Info().Msg("exec: table created lazily")
	}
	idBytes, err := idBytesFor(doc.ID.Key)
	if err != nil {
		return err
	}

	prev := value.None()
	if !doc.IsNew {
		old, found, err := e.loadRecord(tx.Inner(), doc.ID.Table, idBytes)
		if err != nil {
			return err
		}
		if found {
			prev = old
			if err := e.deindex(tx.Inner(), doc.ID.Table, schema, old, idBytes); err != nil {
				return err
			}
		}
	}
	if err := e.Reindex(tx.Inner(), doc.ID.Table, schema, doc.Current, idBytes); err != nil {
		return err
	}
	log.WithTable(e.NS, e.DB, doc.ID.Table).Debug().Bool("new", doc.IsNew).Msg("exec: record upserted")
	if err := tx.Inner().Set(e.recordKey(doc.ID.Table, idBytes), value.Encode(doc.Current)); err != nil {
		return err
	}
	tx.BufferRecordChange(e.NS, e.DB, doc.ID.Table, value.Bytes(idBytes), prev, doc.Current, schema.StoreDiff)
	metrics.RecordUpsertsTotal.WithLabelValues(doc.ID.Table).Inc()
	return nil
}
