package planner

import (
	"fmt"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/document"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/metrics"
	"github.com/cuemby/polydb/pkg/value"
)

// label names op for the index_maintain_total/op metric label.
func (op MaintOp) label() string {
	if op == MaintUpsert {
		return "upsert"
	}
	return "delete"
}

// MaintOp selects which side of an index entry MaintainIndex applies.
type MaintOp int

const (
	MaintUpsert MaintOp = iota
	MaintDelete
)

// MaintainIndex keeps one secondary index in sync with a document
// write, dispatching by index kind the same way NewIterator dispatches
// the read side. doc is the record's current value (post-write for
// MaintUpsert, pre-delete for MaintDelete); recordKey is its already
// sortable-encoded key bytes. Callers run this once per IndexDef a
// table carries, from the same transaction that writes the record
// itself.
func (p *Planner) MaintainIndex(tx kv.Tx, ref IndexReference, recordKey []byte, doc value.Value, op MaintOp) error {
	entry, err := p.BindIndex(ref)
	if err != nil {
		return err
	}

	kindLabel := ref.Def.Kind.String()
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.IndexMaintainDuration, kindLabel)
		metrics.IndexMaintainTotal.WithLabelValues(kindLabel, op.label()).Inc()
	}()

	switch ref.Def.Kind {
	case catalog.IndexMTree:
		vals := columnValues(doc, ref.Def.Cols)
		if len(vals) == 0 || vals[0].IsNone() {
			return nil
		}
		vec, err := valueToVector(vals[0])
		if err != nil {
			return err
		}
		if op == MaintUpsert {
			if err := entry.mt.IndexVector(tx, recordKey, vec); err != nil {
				return err
			}
			metrics.MTreeVectorsIndexed.Inc()
			return nil
		}
		return entry.mt.RemoveVector(tx, recordKey, vec)
	case catalog.IndexSearch, catalog.IndexFullText:
		texts := columnTexts(doc, ref.Def.Cols)
		if op == MaintUpsert {
			if err := entry.ft.IndexDocument(tx, recordKey, texts); err != nil {
				return err
			}
			metrics.FullTextDocumentsIndexed.Inc()
			return nil
		}
		return entry.ft.RemoveDocument(tx, recordKey)
	case catalog.IndexStandard, catalog.IndexUnique:
		colVal := indexColumnValue(doc, ref.Def.Cols)
		if colVal.IsNone() {
			return nil
		}
		if op == MaintUpsert {
			return entry.std.Put(tx, colVal, recordKey)
		}
		return entry.std.Del(tx, colVal, recordKey)
	case catalog.IndexHNSW:
		return fmt.Errorf("planner: HNSW index kind is not implemented in this core")
	default:
		return fmt.Errorf("planner: unknown index kind %d", ref.Def.Kind)
	}
}

func columnValues(doc value.Value, cols []string) []value.Value {
	out := make([]value.Value, len(cols))
	for i, c := range cols {
		v, _ := document.GetByPath(doc, c)
		out[i] = v
	}
	return out
}

func columnTexts(doc value.Value, cols []string) []string {
	vals := columnValues(doc, cols)
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i], _ = v.AsString()
	}
	return out
}

// indexColumnValue collapses a (possibly composite) set of indexed
// columns into the single Value StdIndex keys on: the column value
// itself for a one-column index, or an array of them for a composite
// one.
func indexColumnValue(doc value.Value, cols []string) value.Value {
	vals := columnValues(doc, cols)
	if len(vals) == 1 {
		return vals[0]
	}
	return value.Array(vals)
}
