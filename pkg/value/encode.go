package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// wire tags, stable across revisions: every variant has a stable
// numeric tag. Never renumber an existing tag.
const (
	tagNone     = 0
	tagNull     = 1
	tagBool     = 2
	tagInt      = 3
	tagFloat    = 4
	tagDecimal  = 5
	tagString   = 6
	tagBytes    = 7
	tagDatetime = 8
	tagDuration = 9
	tagUUID     = 10
	tagArray    = 11
	tagObject   = 12
	tagRecordID = 13
	// tagRange, tagGeometry, tagClosure intentionally unassigned: the
	// core never needs to persist them as record data (ranges and
	// closures are expression-time only; geometry support is deferred
	// to the upstream value model this core stands in for).
)

// revision is the leading byte of every encoded Value, using a
// revisioned-enum pattern: a newer reader must accept any older
// encoding; only revision 1 exists so far.
const revision1 = 1

// Encode serializes v as {revision byte}{tag byte}{payload...}.
func Encode(v Value) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, revision1)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.kind {
	case KindNone:
		return append(buf, tagNone)
	case KindNull:
		return append(buf, tagNull)
	case KindBool:
		b := byte(0)
		if v.boolVal {
			b = 1
		}
		return append(buf, tagBool, b)
	case KindInt:
		buf = append(buf, tagInt)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.intVal))
		return append(buf, tmp[:]...)
	case KindFloat:
		buf = append(buf, tagFloat)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.floatVal))
		return append(buf, tmp[:]...)
	case KindDecimal:
		buf = append(buf, tagDecimal)
		s := "0"
		if v.decVal != nil {
			s = v.decVal.RatString()
		}
		return appendString(buf, s)
	case KindString:
		buf = append(buf, tagString)
		return appendString(buf, v.strVal)
	case KindBytes:
		buf = append(buf, tagBytes)
		return appendBytes(buf, v.bytesVal)
	case KindDatetime:
		buf = append(buf, tagDatetime)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.timeVal.UnixNano()))
		return append(buf, tmp[:]...)
	case KindDuration:
		buf = append(buf, tagDuration)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.durVal))
		return append(buf, tmp[:]...)
	case KindUUID:
		buf = append(buf, tagUUID)
		b := v.uuidVal
		return append(buf, b[:]...)
	case KindArray:
		buf = append(buf, tagArray)
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.arrVal)))
		buf = append(buf, tmp[:]...)
		for _, item := range v.arrVal {
			buf = appendValue(buf, item)
		}
		return buf
	case KindObject:
		buf = append(buf, tagObject)
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.objOrder)))
		buf = append(buf, tmp[:]...)
		for _, k := range v.objOrder {
			buf = appendString(buf, k)
			buf = appendValue(buf, v.objVal[k])
		}
		return buf
	case KindRecordID:
		buf = append(buf, tagRecordID)
		if v.ridVal == nil {
			buf = appendString(buf, "")
			return appendValue(buf, None())
		}
		buf = appendString(buf, v.ridVal.Table)
		return appendValue(buf, v.ridVal.Key)
	default:
		// Range/Geometry/Closure are expression-time only; encoding one
		// as part of persisted record data is a programming error
		// upstream, not a corrupt-on-disk condition, so this panics
		// rather than silently truncating data.
		panic(fmt.Sprintf("value: kind %s is not persistable", v.kind))
	}
}

func appendString(buf []byte, s string) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func appendBytes(buf []byte, b []byte) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	return append(buf, b...)
}

// Decode is the inverse of Encode. It fails only on corruption.
func Decode(data []byte) (Value, error) {
	if len(data) < 1 {
		return Value{}, fmt.Errorf("value: empty buffer")
	}
	rev := data[0]
	if rev != revision1 {
		return Value{}, fmt.Errorf("value: unsupported revision %d", rev)
	}
	v, rest, err := readValue(data[1:])
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, fmt.Errorf("value: %d trailing bytes", len(rest))
	}
	return v, nil
}

func readValue(b []byte) (Value, []byte, error) {
	if len(b) < 1 {
		return Value{}, nil, fmt.Errorf("value: truncated tag")
	}
	tag, b := b[0], b[1:]
	switch tag {
	case tagNone:
		return None(), b, nil
	case tagNull:
		return Null(), b, nil
	case tagBool:
		if len(b) < 1 {
			return Value{}, nil, fmt.Errorf("value: truncated bool")
		}
		return Bool(b[0] != 0), b[1:], nil
	case tagInt:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("value: truncated int")
		}
		return Int(int64(binary.BigEndian.Uint64(b[:8]))), b[8:], nil
	case tagFloat:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("value: truncated float")
		}
		return Float(math.Float64frombits(binary.BigEndian.Uint64(b[:8]))), b[8:], nil
	case tagDecimal:
		s, rest, err := readString(b)
		if err != nil {
			return Value{}, nil, err
		}
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return Value{}, nil, fmt.Errorf("value: corrupt decimal %q", s)
		}
		return DecimalFromRat(r), rest, nil
	case tagString:
		s, rest, err := readString(b)
		if err != nil {
			return Value{}, nil, err
		}
		return String(s), rest, nil
	case tagBytes:
		bs, rest, err := readBytes(b)
		if err != nil {
			return Value{}, nil, err
		}
		return Bytes(bs), rest, nil
	case tagDatetime:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("value: truncated datetime")
		}
		nanos := int64(binary.BigEndian.Uint64(b[:8]))
		return Datetime(time.Unix(0, nanos).UTC()), b[8:], nil
	case tagDuration:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("value: truncated duration")
		}
		return Duration(time.Duration(binary.BigEndian.Uint64(b[:8]))), b[8:], nil
	case tagUUID:
		if len(b) < 16 {
			return Value{}, nil, fmt.Errorf("value: truncated uuid")
		}
		u, err := uuid.FromBytes(b[:16])
		if err != nil {
			return Value{}, nil, err
		}
		return UUID(u), b[16:], nil
	case tagArray:
		if len(b) < 4 {
			return Value{}, nil, fmt.Errorf("value: truncated array length")
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			var item Value
			var err error
			item, b, err = readValue(b)
			if err != nil {
				return Value{}, nil, err
			}
			items = append(items, item)
		}
		return Array(items), b, nil
	case tagObject:
		if len(b) < 4 {
			return Value{}, nil, fmt.Errorf("value: truncated object length")
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		order := make([]string, 0, n)
		m := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			var k string
			var err error
			k, b, err = readString(b)
			if err != nil {
				return Value{}, nil, err
			}
			var v Value
			v, b, err = readValue(b)
			if err != nil {
				return Value{}, nil, err
			}
			order = append(order, k)
			m[k] = v
		}
		return Value{kind: KindObject, objVal: m, objOrder: order}, b, nil
	case tagRecordID:
		table, rest, err := readString(b)
		if err != nil {
			return Value{}, nil, err
		}
		key, rest2, err := readValue(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return RecordFromID(RecordID{Table: table, Key: key}), rest2, nil
	default:
		return Value{}, nil, fmt.Errorf("value: unknown tag %d", tag)
	}
}

func readString(b []byte) (string, []byte, error) {
	bs, rest, err := readBytes(b)
	if err != nil {
		return "", nil, err
	}
	return string(bs), rest, nil
}

func readBytes(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("value: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, fmt.Errorf("value: truncated payload")
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out, b[n:], nil
}
