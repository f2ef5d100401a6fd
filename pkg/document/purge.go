package document

import (
	"context"
	"fmt"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/txn"
	"github.com/cuemby/polydb/pkg/value"
)

// RefsUpdateFailure wraps a failure that occurred while cascading a
// delete through an incoming reference, naming the referencing record
// so the caller can report which link could not be resolved.
type RefsUpdateFailure struct {
	RID   record.RecordId
	Cause error
}

func (e *RefsUpdateFailure) Error() string {
	return fmt.Sprintf("document: updating reference from %s: %v", e.RID.String(), e.Cause)
}

func (e *RefsUpdateFailure) Unwrap() error { return e.Cause }

// StatementExecutor is the dependency purge/reference cleanup runs
// cascading statements through, so that cascades observe the same
// permission checks and change-feed emission as a user-issued
// statement would. Implemented by the query executor; this package
// only depends on the interface.
type StatementExecutor interface {
	// DeleteRecord deletes rid's value and dispatches its own purge
	// (edges + references), recursively.
	DeleteRecord(ctx context.Context, tx *txn.Tx, rid record.RecordId, disablePermissions bool) error
	// DeleteEdgesTouching deletes every relation record with rid as
	// either endpoint (the rec->?->? / rec<-?<-? sweep).
	DeleteEdgesTouching(ctx context.Context, tx *txn.Tx, rid record.RecordId, disablePermissions bool) error
	// UnsetField removes fieldPath from rid's record, or if fieldPath
	// names an array field, removes only the matching element.
	UnsetField(ctx context.Context, tx *txn.Tx, rid record.RecordId, fieldPath string, match value.Value, disablePermissions bool) error
	// RunCustom evaluates a reference field's custom ON DELETE
	// statement, with $this bound to the referencing record and
	// $reference bound to the record being purged.
	RunCustom(ctx context.Context, tx *txn.Tx, stmt string, this, reference value.Value, disablePermissions bool) error
}

// EncodeIDKey encodes a record key Value into the sortable byte form
// used within keyspace domain keys (/rec/, /ref/, /graph/). Mirrors the
// lexical encoders pkg/keyspace already defines for index keys.
func EncodeIDKey(key value.Value) ([]byte, error) {
	switch key.Kind() {
	case value.KindString:
		s, _ := key.AsString()
		return keyspace.EncodeSortableString(s), nil
	case value.KindInt:
		i, _ := key.AsInt()
		return keyspace.EncodeSortableInt(i), nil
	case value.KindUUID:
		u, _ := key.AsUUID()
		b := u[:]
		return append([]byte{}, b...), nil
	case value.KindDecimal:
		d, _ := key.AsDecimal()
		return keyspace.DecimalLexEncoder{}.Encode(d)
	default:
		return nil, fmt.Errorf("document: record key kind %s cannot be encoded", key.Kind())
	}
}

// Purge implements the record delete transition: remove the record's
// stored value, sever its graph edges (as an edge record itself, and
// any edge record pointing at it), then cascade through inbound
// references.
func Purge(ctx context.Context, tx *txn.Tx, ns, db string, tb string, rid record.RecordId, isEdge bool, fields []catalog.FieldDef, exec StatementExecutor) error {
	idBytes, err := EncodeIDKey(rid.Key)
	if err != nil {
		return err
	}

	if isEdge {
		if err := purgeEdgeLinks(tx.Inner(), ns, db, tb, idBytes); err != nil {
			return err
		}
	}
	if err := exec.DeleteEdgesTouching(ctx, tx, rid, false); err != nil {
		return fmt.Errorf("document: deleting edges touching %s: %w", rid.String(), err)
	}

	if err := PurgeReferences(ctx, tx, ns, db, tb, rid, idBytes, fields, exec); err != nil {
		return err
	}

	return tx.Inner().Del(keyspace.Record(ns, db, tb, idBytes))
}

// purgeEdgeLinks deletes the two graph pointers (out from rid's in
// endpoint, in to rid's out endpoint) recorded for an edge record. The
// edge record's own in/out values are not tracked here: the caller
// (executor) is expected to have them from the loaded record and pass
// the target id bytes down through DeleteEdgesTouching instead; this
// helper only removes rid's own forward/backward graph slots.
func purgeEdgeLinks(tx kv.Tx, ns, db, tb string, idBytes []byte) error {
	for _, dir := range []keyspace.GraphDir{keyspace.DirOut, keyspace.DirIn} {
		if err := tx.Del(keyspace.Graph(ns, db, tb, dir, idBytes)); err != nil {
			return err
		}
	}
	return nil
}

// PurgeReferences streams every inbound reference pointer recorded
// against (ns, db, tb, id), dispatches the owning field's ON DELETE
// policy, then drops the whole /ref/{id} range.
func PurgeReferences(ctx context.Context, tx *txn.Tx, ns, db, tb string, rid record.RecordId, idBytes []byte, fields []catalog.FieldDef, exec StatementExecutor) error {
	fieldByPath := make(map[string]catalog.FieldDef, len(fields))
	for _, f := range fields {
		fieldByPath[f.Table+"\x00"+f.Path] = f
	}

	start, end := keyspace.PrefixRange(keyspace.RefPrefix(ns, db, tb, idBytes))
	keys, err := tx.Inner().Keys(kv.KeyRange{Start: start, End: end}, 0, nil)
	if err != nil {
		return fmt.Errorf("document: scanning references to %s: %w", rid.String(), err)
	}

	for _, k := range keys {
		ft, ff, fk, err := keyspace.DecodeRef(k)
		if err != nil {
			return fmt.Errorf("document: decoding reference key: %w", err)
		}
		def, ok := fieldByPath[ft+"\x00"+ff]
		if !ok {
			continue // field definition dropped since the reference was recorded
		}
		// fk is the key's already-encoded sortable byte form (see
		// EncodeIDKey), not its logical Value: StatementExecutor
		// implementations must treat RID.Key as opaque key bytes here
		// rather than re-encode it.
		foreignRID := record.RecordId{Table: ft, Key: value.Bytes(fk)}

		switch def.OnDelete {
		case catalog.RefIgnore:
			// nothing to do
		case catalog.RefReject:
			return &RefsUpdateFailure{RID: foreignRID, Cause: fmt.Errorf("record %s is still referenced by %s.%s", rid.String(), ft, ff)}
		case catalog.RefCascade:
			if err := exec.DeleteRecord(ctx, tx, foreignRID, true); err != nil {
				return &RefsUpdateFailure{RID: foreignRID, Cause: err}
			}
		case catalog.RefUnset:
			if err := exec.UnsetField(ctx, tx, foreignRID, ff, value.RecordFromID(recordIDValue(rid)), true); err != nil {
				return &RefsUpdateFailure{RID: foreignRID, Cause: err}
			}
		case catalog.RefCustom:
			if err := exec.RunCustom(ctx, tx, def.CustomStmt, value.RecordFromID(recordIDValue(foreignRID)), value.RecordFromID(recordIDValue(rid)), true); err != nil {
				return &RefsUpdateFailure{RID: foreignRID, Cause: err}
			}
		default:
			return fmt.Errorf("document: unknown reference policy %d on %s.%s", def.OnDelete, ft, ff)
		}
	}

	rangeStart, rangeEnd := keyspace.PrefixRange(keyspace.RefPrefix(ns, db, tb, idBytes))
	if _, err := tx.Inner().BatchDelete(kv.KeyRange{Start: rangeStart, End: rangeEnd}, 1000, nil); err != nil {
		return fmt.Errorf("document: clearing reference pointers for %s: %w", rid.String(), err)
	}
	return nil
}
