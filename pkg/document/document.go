// Package document implements the per-record write state machine:
// generating record ids, applying a write statement's data clause
// (CONTENT/MERGE/PATCH/REPLACE/SET/UNSET), and purging a record
// (value + edges + incoming references) on delete. Uses a command-
// dispatch idiom (a switch over operation kind applying directly to
// the store) generalized from a fixed set of entity kinds to a
// generic clause pipeline over pkg/value.Value.
package document

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

// ErrRecordRangeID is returned when a caller tries to generate or
// assign a record-range value as a concrete record id.
var ErrRecordRangeID = errors.New("document: a record range is not a valid record id")

// ErrNotNewRecord is returned when RELATE in/out are forced onto a
// record that already exists and already carries an in or out field:
// an existing edge's endpoints are not overwritten.
var ErrNotNewRecord = errors.New("document: in/out already set on an existing record")

// GenerateRecordID resolves the id a new record should get: if data
// carries an "id" field, that value is used (rejecting a Range); else
// a fresh random key is generated for genTable.
func GenerateRecordID(genTable string, data value.Value) (record.RecordId, error) {
	if idVal, ok := data.Field("id"); ok && !idVal.IsNone() {
		if _, isRange := idVal.AsRange(); isRange {
			return record.RecordId{}, ErrRecordRangeID
		}
		return record.RecordId{Table: genTable, Key: idVal}, nil
	}
	u, err := uuid.NewRandom()
	if err != nil {
		return record.RecordId{}, fmt.Errorf("document: generate record id: %w", err)
	}
	return record.RecordId{Table: genTable, Key: value.UUID(u)}, nil
}

// DefaultRecordData forces the record's id into its data, and for edge
// records forces in/out to the link targets. Forcing in/out on a
// record that is not new and already has an in or out field is
// rejected with ErrNotNewRecord: an edge's endpoints are immutable
// once set.
func DefaultRecordData(doc *record.CursorDoc, in, out *value.Value) error {
	doc.Current = doc.Current.WithField("id", value.RecordFromID(recordIDValue(doc.ID)))

	if in == nil && out == nil {
		return nil
	}
	if !doc.IsNew {
		_, hasIn := doc.Current.Field("in")
		_, hasOut := doc.Current.Field("out")
		if hasIn || hasOut {
			return ErrNotNewRecord
		}
	}
	if in != nil {
		doc.Current = doc.Current.WithField("in", *in)
	}
	if out != nil {
		doc.Current = doc.Current.WithField("out", *out)
	}
	return nil
}

// ProcessMergeData applies the per-document data block of an
// INSERT/RELATE statement: a plain deep merge of data into the
// record's current value.
func ProcessMergeData(doc *record.CursorDoc, data value.Value) {
	doc.Current = deepMerge(doc.Current, data)
}

// recordIDValue converts a record.RecordId (the document package's own
// identity type) into the value.RecordID the value.Value union stores,
// since the two are structurally identical but not the same Go type.
func recordIDValue(id record.RecordId) value.RecordID {
	return value.RecordID{Table: id.Table, Key: id.Key}
}

func deepMerge(base, patch value.Value) value.Value {
	if patch.Kind() != value.KindObject {
		return patch
	}
	if base.Kind() != value.KindObject {
		base = value.EmptyObject()
	}
	out := base
	for _, k := range patch.ObjectKeys() {
		pv, _ := patch.Field(k)
		if bv, ok := out.Field(k); ok && bv.Kind() == value.KindObject && pv.Kind() == value.KindObject {
			out = out.WithField(k, deepMerge(bv, pv))
			continue
		}
		out = out.WithField(k, pv)
	}
	return out
}

// RecordKey builds the /tb/{t}/rec/{id} key a record's value is stored
// under, from the already-sortable key bytes the caller derives from the
// record id's Value (see keyspace.EncodeSortableString/Int, and
// keyspace.DecimalLexEncoder for decimal/numeric keys). It neither
// writes nor reads the record.
func RecordKey(ns, db, tb string, idBytes []byte) []byte {
	return keyspace.Record(ns, db, tb, idBytes)
}
