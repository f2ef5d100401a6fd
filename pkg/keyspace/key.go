package keyspace

import (
	"encoding/binary"
	"fmt"
)

// Domain tags one segment of the keyspace. Every key begins with exactly
// one of these.
type Domain byte

const (
	DomainNamespace Domain = 0x01
	DomainDatabase  Domain = 0x02
	DomainTable     Domain = 0x03
	DomainField     Domain = 0x04
	DomainIndexDef  Domain = 0x05
	DomainIndexRev  Domain = 0x06 // reverse id -> name lookup
	DomainRecord    Domain = 0x07
	DomainGraph     Domain = 0x08
	DomainRef       Domain = 0x09
	DomainChangeFeed Domain = 0x0A
	DomainIndexData Domain = 0x0B // family-specific index payload
	DomainSequence  Domain = 0x0C
)

// GraphDir distinguishes outbound from inbound edge links (`rec->` /
// `rec<-` directions).
type GraphDir byte

const (
	DirOut GraphDir = 1
	DirIn  GraphDir = 2
)

// appendSeg appends a length-prefixed segment. Segments are NUL-free
// (enforced by the Strand contract upstream — see glossary) but the
// length prefix means embedded separators never need escaping here.
func appendSeg(buf []byte, seg []byte) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(seg)))
	buf = append(buf, tmp[:]...)
	return append(buf, seg...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Namespace encodes /ns/{name}.
func Namespace(name string) []byte {
	buf := []byte{byte(DomainNamespace)}
	return appendSeg(buf, []byte(name))
}

// Database encodes /ns/{ns}/db/{name}.
func Database(ns, name string) []byte {
	buf := []byte{byte(DomainDatabase)}
	buf = appendSeg(buf, []byte(ns))
	return appendSeg(buf, []byte(name))
}

// Table encodes /ns/{ns}/db/{db}/tb/{name}.
func Table(ns, db, name string) []byte {
	buf := []byte{byte(DomainTable)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	return appendSeg(buf, []byte(name))
}

// TablePrefix encodes the half-open prefix range for "every table of
// (ns, db)".
func TablePrefix(ns, db string) []byte {
	buf := []byte{byte(DomainTable)}
	buf = appendSeg(buf, []byte(ns))
	return appendSeg(buf, []byte(db))
}

// Field encodes /ns/{ns}/db/{db}/tb/{tb}/fd/{path}.
func Field(ns, db, tb, path string) []byte {
	buf := []byte{byte(DomainField)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	return appendSeg(buf, []byte(path))
}

// FieldPrefix encodes "every field of (ns, db, tb)".
func FieldPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(DomainField)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	return appendSeg(buf, []byte(tb))
}

// IndexDef encodes /ns/{ns}/db/{db}/tb/{tb}/ix/{name}.
func IndexDef(ns, db, tb, name string) []byte {
	buf := []byte{byte(DomainIndexDef)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	return appendSeg(buf, []byte(name))
}

// IndexDefPrefix encodes "every index def of (ns, db, tb)".
func IndexDefPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(DomainIndexDef)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	return appendSeg(buf, []byte(tb))
}

// IndexRev encodes the reverse id->name lookup for an index.
func IndexRev(ns, db, tb string, ixID uint32) []byte {
	buf := []byte{byte(DomainIndexRev)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	return appendU32(buf, ixID)
}

// Record encodes /ns/{ns}/db/{db}/tb/{tb}/rec/{id}, where id is the
// caller-provided already-encoded sortable key bytes of the record's key
// component (see EncodeSortableString/Int helpers below).
func Record(ns, db, tb string, idBytes []byte) []byte {
	buf := []byte{byte(DomainRecord)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	return append(buf, idBytes...)
}

// RecordPrefix encodes "every record of (ns, db, tb)".
func RecordPrefix(ns, db, tb string) []byte {
	buf := []byte{byte(DomainRecord)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	return appendSeg(buf, []byte(tb))
}

// Graph encodes /ns/{ns}/db/{db}/tb/{tb}/graph/{dir}/{target_id}.
func Graph(ns, db, tb string, dir GraphDir, targetIDBytes []byte) []byte {
	buf := []byte{byte(DomainGraph)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	buf = append(buf, byte(dir))
	return append(buf, targetIDBytes...)
}

// GraphPrefix encodes "every graph link of (ns, db, tb) in direction dir".
// If dir is 0, matches both directions.
func GraphPrefix(ns, db, tb string, dir GraphDir) []byte {
	buf := []byte{byte(DomainGraph)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	if dir != 0 {
		buf = append(buf, byte(dir))
	}
	return buf
}

// Ref encodes /ns/{ns}/db/{db}/tb/{tb}/ref/{id}/{ft}/{ff}/{fk} — an
// inbound reference pointer recording that record (ft, fk)'s field ff
// points at this record.
func Ref(ns, db, tb string, idBytes []byte, ft, ff string, fkBytes []byte) []byte {
	buf := []byte{byte(DomainRef)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	buf = appendSeg(buf, idBytes)
	buf = appendSeg(buf, []byte(ft))
	buf = appendSeg(buf, []byte(ff))
	return appendSeg(buf, fkBytes)
}

// RefPrefix encodes "every inbound reference pointer for record
// (ns, db, tb, id)" — the range a reference-purge cascade streams and
// deletes.
func RefPrefix(ns, db, tb string, idBytes []byte) []byte {
	buf := []byte{byte(DomainRef)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	return appendSeg(buf, idBytes)
}

// DecodeRef splits a ref key's payload (after RefPrefix) into
// (foreign table, foreign field idiom, foreign key bytes).
func DecodeRef(key []byte) (ft, ff string, fk []byte, err error) {
	rest := key
	// Skip domain tag + ns + db + tb + id segments (4 segments) to reach
	// ft/ff/fk; callers pass the full key so we must walk all segments.
	for i := 0; i < 1; i++ {
		if len(rest) < 1 || Domain(rest[0]) != DomainRef {
			return "", "", nil, fmt.Errorf("keyspace: not a ref key")
		}
		rest = rest[1:]
	}
	var segs [][]byte
	for len(rest) > 0 && len(segs) < 7 {
		seg, r, e := readSeg(rest)
		if e != nil {
			return "", "", nil, e
		}
		segs = append(segs, seg)
		rest = r
	}
	if len(segs) != 7 {
		return "", "", nil, fmt.Errorf("keyspace: malformed ref key (%d segments)", len(segs))
	}
	return string(segs[4]), string(segs[5]), segs[6], nil
}

// ChangeFeed encodes /ns/{ns}/db/{db}/cf/{ts_be}/{tb}.
func ChangeFeed(ns, db string, tsBigEndian []byte, tb string) []byte {
	buf := []byte{byte(DomainChangeFeed)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = append(buf, tsBigEndian...) // fixed 10 bytes, not length-prefixed: sorts directly
	return appendSeg(buf, []byte(tb))
}

// ChangeFeedPrefix encodes "every change-feed entry of (ns, db)".
func ChangeFeedPrefix(ns, db string) []byte {
	buf := []byte{byte(DomainChangeFeed)}
	buf = appendSeg(buf, []byte(ns))
	return appendSeg(buf, []byte(db))
}

// IndexData encodes /ns/{ns}/db/{db}/tb/{tb}/ix/{ix_id}/{suffix}, the
// family-specific index payload area (M-Tree nodes, full-text postings,
// doc-length table, ...). suffix is caller-defined but always appended
// raw so range scans over a sub-area stay contiguous.
func IndexData(ns, db, tb string, ixID uint32, suffix []byte) []byte {
	buf := []byte{byte(DomainIndexData)}
	buf = appendSeg(buf, []byte(ns))
	buf = appendSeg(buf, []byte(db))
	buf = appendSeg(buf, []byte(tb))
	buf = appendU32(buf, ixID)
	return append(buf, suffix...)
}

// IndexDataPrefix encodes "every payload entry of index ixID".
func IndexDataPrefix(ns, db, tb string, ixID uint32) []byte {
	return IndexData(ns, db, tb, ixID, nil)
}

// Sequence encodes /seq/{scope}/{name}.
func Sequence(scope, name string) []byte {
	buf := []byte{byte(DomainSequence)}
	buf = appendSeg(buf, []byte(scope))
	return appendSeg(buf, []byte(name))
}

// PrefixRange returns the half-open [start, end) byte range that
// contains exactly the keys sharing prefix p. Ad-hoc byte manipulation
// of keys outside this helper is forbidden elsewhere in the codebase.
func PrefixRange(p []byte) (start, end []byte) {
	start = append([]byte(nil), p...)
	end = make([]byte, len(p))
	copy(end, p)
	// increment the last byte that is not 0xFF, dropping any trailing
	// 0xFF bytes, to get the smallest key greater than every key with
	// prefix p.
	i := len(end) - 1
	for i >= 0 && end[i] == 0xFF {
		i--
	}
	if i < 0 {
		return start, nil // prefix is all 0xFF*: unbounded above
	}
	end = end[:i+1]
	end[i]++
	return start, end
}

func readSeg(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("keyspace: truncated segment length")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, fmt.Errorf("keyspace: truncated segment")
	}
	return b[:n], b[n:], nil
}
