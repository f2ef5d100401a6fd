package value

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind tags the variant held by a Value. The union is closed: every
// switch over Kind in this module is expected to be exhaustive, and a
// new variant requires touching every exhaustive switch deliberately
// rather than silently falling through a default case.
type Kind uint8

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindDatetime
	KindDuration
	KindUUID
	KindArray
	KindObject
	KindRecordID
	KindRange
	KindGeometry
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDatetime:
		return "datetime"
	case KindDuration:
		return "duration"
	case KindUUID:
		return "uuid"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRecordID:
		return "record"
	case KindRange:
		return "range"
	case KindGeometry:
		return "geometry"
	case KindClosure:
		return "closure"
	default:
		return "unknown"
	}
}

// RecordID identifies a single record within a table: table name plus an
// opaque key, which is itself a Value (string, int, array, object, or
// uuid key forms are all legal, matching the source system's `Id` union).
type RecordID struct {
	Table string
	Key   Value
}

func (r RecordID) String() string {
	return fmt.Sprintf("%s:%s", r.Table, r.Key.String())
}

// Range describes a bound pair used by RecordId ranges and by SELECT
// range predicates. Begin/End are nil for unbounded sides.
type Range struct {
	Begin        *Value
	BeginInclude bool
	End          *Value
	EndInclude   bool
}

// Geometry is a coarse GeoJSON-shaped model: the core only needs to
// serialize/deserialize and compare geometries, never rasterize them.
type Geometry struct {
	Type        string // "Point", "LineString", "Polygon", "MultiPoint", ...
	Coordinates []float64
	Rings       [][]float64 // used by Polygon/MultiLineString; empty otherwise
}

// Closure is an opaque callable value: the core stores its name and a
// captured Object but never invokes it — evaluation is an external
// collaborator's responsibility (the expression engine).
type Closure struct {
	Params  []string
	Capture map[string]Value
}

// Value is the engine's closed tagged union of runtime data kinds. Zero
// value is KindNone.
type Value struct {
	kind     Kind
	boolVal  bool
	intVal   int64
	floatVal float64
	decVal   *big.Rat
	strVal   string
	bytesVal []byte
	timeVal  time.Time
	durVal   time.Duration
	uuidVal  uuid.UUID
	arrVal   []Value
	objVal   map[string]Value
	// objOrder preserves insertion order for deterministic iteration and
	// encoding; objVal alone (a Go map) has none.
	objOrder []string
	ridVal   *RecordID
	rangeVal *Range
	geomVal  *Geometry
	closVal  *Closure
}

func None() Value { return Value{kind: KindNone} }
func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value { return Value{kind: KindBool, boolVal: b} }
func Int(i int64) Value { return Value{kind: KindInt, intVal: i} }
func Float(f float64) Value { return Value{kind: KindFloat, floatVal: f} }

// Decimal constructs an arbitrary-precision decimal from a base-10 string.
func Decimal(s string) (Value, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Value{}, fmt.Errorf("value: invalid decimal literal %q", s)
	}
	return Value{kind: KindDecimal, decVal: r}, nil
}

func DecimalFromRat(r *big.Rat) Value {
	return Value{kind: KindDecimal, decVal: new(big.Rat).Set(r)}
}

func String(s string) Value { return Value{kind: KindString, strVal: s} }

func Bytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{kind: KindBytes, bytesVal: cp}
}

func Datetime(t time.Time) Value { return Value{kind: KindDatetime, timeVal: t.UTC()} }
func Duration(d time.Duration) Value { return Value{kind: KindDuration, durVal: d} }
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, uuidVal: u} }

func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arrVal: cp}
}

// Object builds an Object value from an ordered slice of keys, preserving
// that order on iteration and encoding.
func Object(keys []string, vals map[string]Value) Value {
	order := make([]string, len(keys))
	copy(order, keys)
	m := make(map[string]Value, len(vals))
	for k, v := range vals {
		m[k] = v
	}
	return Value{kind: KindObject, objVal: m, objOrder: order}
}

// EmptyObject returns an Object with no fields.
func EmptyObject() Value {
	return Value{kind: KindObject, objVal: map[string]Value{}}
}

func Record(table string, key Value) Value {
	rid := RecordID{Table: table, Key: key}
	return Value{kind: KindRecordID, ridVal: &rid}
}

func RecordFromID(id RecordID) Value {
	return Value{kind: KindRecordID, ridVal: &id}
}

func RangeValue(r Range) Value { return Value{kind: KindRange, rangeVal: &r} }

func GeometryValue(g Geometry) Value { return Value{kind: KindGeometry, geomVal: &g} }

func ClosureValue(c Closure) Value { return Value{kind: KindClosure, closVal: &c} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)          { return v.boolVal, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)          { return v.intVal, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)      { return v.floatVal, v.kind == KindFloat }
func (v Value) AsDecimal() (*big.Rat, bool)   { return v.decVal, v.kind == KindDecimal }
func (v Value) AsString() (string, bool)      { return v.strVal, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)       { return v.bytesVal, v.kind == KindBytes }
func (v Value) AsDatetime() (time.Time, bool) { return v.timeVal, v.kind == KindDatetime }
func (v Value) AsDuration() (time.Duration, bool) {
	return v.durVal, v.kind == KindDuration
}
func (v Value) AsUUID() (uuid.UUID, bool) { return v.uuidVal, v.kind == KindUUID }
func (v Value) AsArray() ([]Value, bool)  { return v.arrVal, v.kind == KindArray }
func (v Value) AsRecordID() (RecordID, bool) {
	if v.kind != KindRecordID || v.ridVal == nil {
		return RecordID{}, false
	}
	return *v.ridVal, true
}
func (v Value) AsRange() (Range, bool) {
	if v.kind != KindRange || v.rangeVal == nil {
		return Range{}, false
	}
	return *v.rangeVal, true
}
func (v Value) AsGeometry() (Geometry, bool) {
	if v.kind != KindGeometry || v.geomVal == nil {
		return Geometry{}, false
	}
	return *v.geomVal, true
}
func (v Value) AsClosure() (Closure, bool) {
	if v.kind != KindClosure || v.closVal == nil {
		return Closure{}, false
	}
	return *v.closVal, true
}

// ObjectKeys returns the object's keys in insertion order. Returns nil if
// v is not an Object.
func (v Value) ObjectKeys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.objOrder
}

// Field looks up a field of an Object value, returning (None, false) if
// absent or if v is not an Object.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return None(), false
	}
	val, ok := v.objVal[key]
	return val, ok
}

// WithField returns a copy of v (must be an Object, or None which is
// treated as an empty Object) with key set to val.
func (v Value) WithField(key string, val Value) Value {
	var order []string
	m := map[string]Value{}
	if v.kind == KindObject {
		order = append(order, v.objOrder...)
		for k, vv := range v.objVal {
			m[k] = vv
		}
	}
	if _, exists := m[key]; !exists {
		order = append(order, key)
	}
	m[key] = val
	return Value{kind: KindObject, objVal: m, objOrder: order}
}

// WithoutField returns a copy of v (must be an Object) with key removed.
func (v Value) WithoutField(key string) Value {
	if v.kind != KindObject {
		return v
	}
	m := map[string]Value{}
	order := make([]string, 0, len(v.objOrder))
	for _, k := range v.objOrder {
		if k == key {
			continue
		}
		order = append(order, k)
		m[k] = v.objVal[k]
	}
	return Value{kind: KindObject, objVal: m, objOrder: order}
}

// Truthy implements the Filter operator's falsy rule:
// None/Null/false/zero number/empty string/array/object are falsy,
// everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNone, KindNull:
		return false
	case KindBool:
		return v.boolVal
	case KindInt:
		return v.intVal != 0
	case KindFloat:
		return v.floatVal != 0 && !math.IsNaN(v.floatVal)
	case KindDecimal:
		return v.decVal != nil && v.decVal.Sign() != 0
	case KindString:
		return v.strVal != ""
	case KindBytes:
		return len(v.bytesVal) != 0
	case KindArray:
		return len(v.arrVal) != 0
	case KindObject:
		return len(v.objVal) != 0
	default:
		return true
	}
}

// Clone deep-copies v, so that a cached Arc-style shared Value can be
// mutated by a caller without affecting the cache.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes:
		return Bytes(v.bytesVal)
	case KindArray:
		items := make([]Value, len(v.arrVal))
		for i, it := range v.arrVal {
			items[i] = it.Clone()
		}
		return Array(items)
	case KindObject:
		m := make(map[string]Value, len(v.objVal))
		for k, vv := range v.objVal {
			m[k] = vv.Clone()
		}
		order := make([]string, len(v.objOrder))
		copy(order, v.objOrder)
		return Value{kind: KindObject, objVal: m, objOrder: order}
	case KindDecimal:
		if v.decVal == nil {
			return v
		}
		return DecimalFromRat(v.decVal)
	case KindRecordID:
		if v.ridVal == nil {
			return v
		}
		rid := RecordID{Table: v.ridVal.Table, Key: v.ridVal.Key.Clone()}
		return Value{kind: KindRecordID, ridVal: &rid}
	default:
		return v
	}
}

// Equal reports deep equality between two Values of the same Kind.
// Values of differing kinds are never equal, matching the source
// system's strict-typed comparison (no cross-kind numeric coercion at
// the Value layer — that is the expression evaluator's job upstream).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone, KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return a.intVal == b.intVal
	case KindFloat:
		return a.floatVal == b.floatVal
	case KindDecimal:
		if a.decVal == nil || b.decVal == nil {
			return a.decVal == b.decVal
		}
		return a.decVal.Cmp(b.decVal) == 0
	case KindString:
		return a.strVal == b.strVal
	case KindBytes:
		if len(a.bytesVal) != len(b.bytesVal) {
			return false
		}
		for i := range a.bytesVal {
			if a.bytesVal[i] != b.bytesVal[i] {
				return false
			}
		}
		return true
	case KindDatetime:
		return a.timeVal.Equal(b.timeVal)
	case KindDuration:
		return a.durVal == b.durVal
	case KindUUID:
		return a.uuidVal == b.uuidVal
	case KindArray:
		if len(a.arrVal) != len(b.arrVal) {
			return false
		}
		for i := range a.arrVal {
			if !Equal(a.arrVal[i], b.arrVal[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.objVal) != len(b.objVal) {
			return false
		}
		for k, av := range a.objVal {
			bv, ok := b.objVal[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindRecordID:
		if a.ridVal == nil || b.ridVal == nil {
			return a.ridVal == b.ridVal
		}
		return a.ridVal.Table == b.ridVal.Table && Equal(a.ridVal.Key, b.ridVal.Key)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "NONE"
	case KindNull:
		return "NULL"
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindInt:
		return fmt.Sprintf("%d", v.intVal)
	case KindFloat:
		return fmt.Sprintf("%g", v.floatVal)
	case KindDecimal:
		if v.decVal == nil {
			return "0"
		}
		return v.decVal.RatString()
	case KindString:
		return v.strVal
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.bytesVal))
	case KindDatetime:
		return v.timeVal.Format(time.RFC3339Nano)
	case KindDuration:
		return v.durVal.String()
	case KindUUID:
		return v.uuidVal.String()
	case KindArray:
		return fmt.Sprintf("[%d items]", len(v.arrVal))
	case KindObject:
		return fmt.Sprintf("{%d fields}", len(v.objVal))
	case KindRecordID:
		if v.ridVal == nil {
			return "record:?"
		}
		return v.ridVal.String()
	case KindRange:
		return "range"
	case KindGeometry:
		return "geometry"
	case KindClosure:
		return "closure"
	default:
		return "?"
	}
}

// SortObjectKeys returns a copy of keys sorted lexically; used by
// encoders and tests that need deterministic iteration independent of
// insertion order.
func SortObjectKeys(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}
