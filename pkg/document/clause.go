package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

// ClauseKind selects which statement-level data clause ProcessRecordData
// applies.
type ClauseKind int

const (
	ClauseContent ClauseKind = iota
	ClauseReplace
	ClauseMerge
	ClausePatch
	ClauseSet
	ClauseUnset
)

// AssignOp is one SET assignment's operator.
type AssignOp int

const (
	AssignSet    AssignOp = iota // =
	AssignPlus                   // +=
	AssignMinus                  // -=
	AssignPlusQ                  // +?= (append if not already present)
)

// Assignment is one SET clause entry.
type Assignment struct {
	Path string
	Op   AssignOp
	Val  value.Value
}

// PatchOp is one JSON-Patch-shaped operation (add/remove/replace,
// applied in order; the other RFC 6902 ops are not part of this core's
// surface).
type PatchOp struct {
	Op    string
	Path  string
	Value value.Value
}

// Clause bundles a clause kind with whichever payload it needs.
type Clause struct {
	Kind        ClauseKind
	Content     value.Value  // CONTENT / REPLACE
	Patches     []PatchOp    // PATCH
	Assignments []Assignment // SET
	UnsetPaths  []string     // UNSET
}

// ProcessRecordData applies clause to doc.Current, re-injecting the
// record's id afterward since CONTENT/REPLACE replace the value
// wholesale.
func ProcessRecordData(doc *record.CursorDoc, clause Clause) error {
	switch clause.Kind {
	case ClauseContent, ClauseReplace:
		doc.Current = clause.Content
	case ClauseMerge:
		doc.Current = deepMerge(doc.Current, clause.Content)
	case ClausePatch:
		for _, op := range clause.Patches {
			next, err := applyPatch(doc.Current, op)
			if err != nil {
				return err
			}
			doc.Current = next
		}
	case ClauseSet:
		for _, a := range clause.Assignments {
			next, err := applyAssignment(doc.Current, a)
			if err != nil {
				return err
			}
			doc.Current = next
		}
	case ClauseUnset:
		for _, p := range clause.UnsetPaths {
			doc.Current = unsetPath(doc.Current, splitPath(p))
		}
	default:
		return fmt.Errorf("document: unknown clause kind %d", clause.Kind)
	}
	doc.Current = doc.Current.WithField("id", value.RecordFromID(recordIDValue(doc.ID)))
	return nil
}

// GetByPath reads the value at dot-path path within v, for callers
// outside this package (index maintenance, reference cleanup) that
// need the same traversal UNSET/SET/PATCH already use.
func GetByPath(v value.Value, path string) (value.Value, bool) {
	return getPath(v, splitPath(path))
}

// UnsetField removes fieldPath from v. If the value at fieldPath is an
// array and match is not None, only the elements equal to match are
// removed rather than the whole path (the RefUnset reference policy's
// behavior: drop this record's id out of the referencing array field,
// not the field itself).
func UnsetField(v value.Value, fieldPath string, match value.Value) value.Value {
	path := splitPath(fieldPath)
	if match.IsNone() {
		return unsetPath(v, path)
	}
	existing, ok := getPath(v, path)
	if !ok || existing.Kind() != value.KindArray {
		return unsetPath(v, path)
	}
	arr, _ := existing.AsArray()
	out := make([]value.Value, 0, len(arr))
	for _, item := range arr {
		if !value.Equal(item, match) {
			out = append(out, item)
		}
	}
	return setPath(v, path, value.Array(out))
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func getPath(v value.Value, path []string) (value.Value, bool) {
	cur := v
	for _, seg := range path {
		if idx, err := strconv.Atoi(seg); err == nil {
			arr, ok := cur.AsArray()
			if !ok || idx < 0 || idx >= len(arr) {
				return value.None(), false
			}
			cur = arr[idx]
			continue
		}
		fv, ok := cur.Field(seg)
		if !ok {
			return value.None(), false
		}
		cur = fv
	}
	return cur, true
}

// setPath returns a copy of v with path set to newVal, creating
// intermediate objects as needed.
func setPath(v value.Value, path []string, newVal value.Value) value.Value {
	if len(path) == 0 {
		return newVal
	}
	head, rest := path[0], path[1:]
	if idx, err := strconv.Atoi(head); err == nil {
		orig, ok := v.AsArray()
		arr := make([]value.Value, len(orig))
		copy(arr, orig)
		if !ok {
			arr = nil
		}
		for len(arr) <= idx {
			arr = append(arr, value.Null())
		}
		if len(rest) == 0 {
			arr[idx] = newVal
		} else {
			arr[idx] = setPath(arr[idx], rest, newVal)
		}
		return value.Array(arr)
	}
	child, _ := v.Field(head)
	return v.WithField(head, setPath(child, rest, newVal))
}

func unsetPath(v value.Value, path []string) value.Value {
	if len(path) == 0 {
		return v
	}
	if len(path) == 1 {
		return v.WithoutField(path[0])
	}
	child, ok := v.Field(path[0])
	if !ok {
		return v
	}
	return v.WithField(path[0], unsetPath(child, path[1:]))
}

func applyAssignment(cur value.Value, a Assignment) (value.Value, error) {
	path := splitPath(a.Path)
	switch a.Op {
	case AssignSet:
		return setPath(cur, path, a.Val), nil
	case AssignPlus:
		existing, _ := getPath(cur, path)
		next, err := addValues(existing, a.Val)
		if err != nil {
			return cur, err
		}
		return setPath(cur, path, next), nil
	case AssignMinus:
		existing, _ := getPath(cur, path)
		next, err := subValues(existing, a.Val)
		if err != nil {
			return cur, err
		}
		return setPath(cur, path, next), nil
	case AssignPlusQ:
		existing, ok := getPath(cur, path)
		if !ok || existing.Kind() != value.KindArray {
			return setPath(cur, path, value.Array([]value.Value{a.Val})), nil
		}
		arr, _ := existing.AsArray()
		for _, item := range arr {
			if value.Equal(item, a.Val) {
				return cur, nil
			}
		}
		return setPath(cur, path, value.Array(append(arr, a.Val))), nil
	default:
		return cur, fmt.Errorf("document: unknown assignment operator %d", a.Op)
	}
}

// addValues implements += : numeric addition for numbers, concatenation
// for strings, and append-or-union for arrays (matching the "+=" used
// as both an arithmetic and a collection operator upstream).
func addValues(a, b value.Value) (value.Value, error) {
	if a.IsNone() || a.IsNull() {
		return b, nil
	}
	switch a.Kind() {
	case value.KindInt:
		ai, _ := a.AsInt()
		if bi, ok := b.AsInt(); ok {
			return value.Int(ai + bi), nil
		}
	case value.KindFloat:
		af, _ := a.AsFloat()
		if bf, ok := b.AsFloat(); ok {
			return value.Float(af + bf), nil
		}
	case value.KindString:
		as, _ := a.AsString()
		if bs, ok := b.AsString(); ok {
			return value.String(as + bs), nil
		}
	case value.KindArray:
		arr, _ := a.AsArray()
		if bArr, ok := b.AsArray(); ok {
			return value.Array(append(append([]value.Value{}, arr...), bArr...)), nil
		}
		return value.Array(append(append([]value.Value{}, arr...), b)), nil
	}
	return value.Value{}, fmt.Errorf("document: += unsupported between %s and %s", a.Kind(), b.Kind())
}

// subValues implements -= : numeric subtraction, and element removal
// for arrays (every element equal to b is removed).
func subValues(a, b value.Value) (value.Value, error) {
	switch a.Kind() {
	case value.KindInt:
		ai, _ := a.AsInt()
		if bi, ok := b.AsInt(); ok {
			return value.Int(ai - bi), nil
		}
	case value.KindFloat:
		af, _ := a.AsFloat()
		if bf, ok := b.AsFloat(); ok {
			return value.Float(af - bf), nil
		}
	case value.KindArray:
		arr, _ := a.AsArray()
		out := make([]value.Value, 0, len(arr))
		for _, item := range arr {
			if !value.Equal(item, b) {
				out = append(out, item)
			}
		}
		return value.Array(out), nil
	}
	return value.Value{}, fmt.Errorf("document: -= unsupported between %s and %s", a.Kind(), b.Kind())
}

// applyPatch applies one RFC 6902-shaped operation to v.
func applyPatch(v value.Value, op PatchOp) (value.Value, error) {
	path := splitPath(strings.TrimPrefix(op.Path, "/"))
	switch op.Op {
	case "add", "replace":
		return setPath(v, path, op.Value), nil
	case "remove":
		return unsetPath(v, path), nil
	default:
		return v, fmt.Errorf("document: unsupported patch op %q", op.Op)
	}
}
