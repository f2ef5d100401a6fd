// Package fulltext implements the term-postings side of the full-text
// index: per-document tokenization results from pkg/analyzer are
// written as term->document postings and queried back with a BM25
// scorer and highlighter. Posting lists use
// github.com/RoaringBitmap/roaring/v2/roaring64, the same dependency
// pkg/mtree uses for leaf doc sets. Documents are addressed by a
// caller-assigned uint64 doc id (the same convention pkg/mtree uses),
// never by the record id directly, so doc sets fit a roaring64.Bitmap
// without a lossy hash.
package fulltext

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/cuemby/polydb/pkg/analyzer"
	"github.com/cuemby/polydb/pkg/kv"
)

const (
	tagPosting  byte = 0x01 // td/{term}\x00{docID} -> Posting
	tagDocLen   byte = 0x02 // dl/{docID} -> length
	tagDocTerms byte = 0x03 // tm/{docID} -> list of terms the doc has postings for
	tagStats    byte = 0x04 // aggregate doc count + total length, for BM25's avgdl
)

// Posting is one term's occurrence record within a document.
type Posting struct {
	Freq    uint32
	Offsets []Offset // recorded only when the index enables highlighting
}

// Offset is a matched term's character span within one field, by
// field index within the indexed field list.
type Offset struct {
	FieldIndex int
	CharStart  int
	CharEnd    int
}

// Index persists postings for one full-text index through a kv.Tx.
// keyFunc builds the full key from a payload suffix, normally a
// closure over keyspace.IndexData(ns, db, tb, ixID, suffix).
type Index struct {
	tx           kv.Tx
	keyFunc      func(suffix []byte) []byte
	highlighting bool
}

// NewIndex constructs an Index bound to tx. highlighting controls
// whether term offsets are recorded (and therefore whether Highlight
// can later be used against documents indexed through this Index).
func NewIndex(tx kv.Tx, keyFunc func(suffix []byte) []byte, highlighting bool) *Index {
	return &Index{tx: tx, keyFunc: keyFunc, highlighting: highlighting}
}

func docIDBytes(docID uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], docID)
	return buf[:]
}

func postingKey(term string, docID uint64) []byte {
	buf := []byte{tagPosting}
	buf = append(buf, []byte(term)...)
	buf = append(buf, 0x00)
	return append(buf, docIDBytes(docID)...)
}

func postingPrefix(term string) []byte {
	buf := []byte{tagPosting}
	buf = append(buf, []byte(term)...)
	return append(buf, 0x00)
}

func docLenKey(docID uint64) []byte {
	return append([]byte{tagDocLen}, docIDBytes(docID)...)
}

func docTermsKey(docID uint64) []byte {
	return append([]byte{tagDocTerms}, docIDBytes(docID)...)
}

func statsKey() []byte {
	return []byte{tagStats}
}

// IndexDocument writes one posting per distinct term across
// fieldTerms (one slice per indexed field, already tokenized and
// filtered via pkg/analyzer) plus the document's total term count.
func (ix *Index) IndexDocument(docID uint64, fieldTerms [][]analyzer.Term) error {
	byTerm := map[string]*Posting{}
	total := 0
	for fieldIdx, terms := range fieldTerms {
		for _, term := range terms {
			total++
			p, ok := byTerm[term.Text]
			if !ok {
				p = &Posting{}
				byTerm[term.Text] = p
			}
			p.Freq++
			if ix.highlighting {
				p.Offsets = append(p.Offsets, Offset{
					FieldIndex: fieldIdx,
					CharStart:  term.Token.CharStart,
					CharEnd:    term.Token.CharEnd,
				})
			}
		}
	}

	termList := make([]string, 0, len(byTerm))
	for term, p := range byTerm {
		raw := encodePosting(p)
		if err := ix.tx.Set(ix.keyFunc(postingKey(term, docID)), raw); err != nil {
			return err
		}
		termList = append(termList, term)
	}
	if err := ix.tx.Set(ix.keyFunc(docLenKey(docID)), encodeU64(uint64(total))); err != nil {
		return err
	}
	if err := ix.tx.Set(ix.keyFunc(docTermsKey(docID)), encodeTermList(termList)); err != nil {
		return err
	}
	return ix.bumpStats(1, int64(total))
}

// RemoveDocument deletes every posting entry for docID plus its length
// and term-list entries. Analyzer state is never persisted, so removal
// needs no tokenizer access: the stored term list is enough.
func (ix *Index) RemoveDocument(docID uint64) error {
	raw, err := ix.tx.Get(ix.keyFunc(docTermsKey(docID)), nil)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	termList, err := decodeTermList(raw)
	if err != nil {
		return err
	}

	lenRaw, err := ix.tx.Get(ix.keyFunc(docLenKey(docID)), nil)
	var length uint64
	if err == nil {
		length, _ = decodeU64(lenRaw)
	}

	for _, term := range termList {
		if err := ix.tx.Del(ix.keyFunc(postingKey(term, docID))); err != nil {
			return err
		}
	}
	if err := ix.tx.Del(ix.keyFunc(docLenKey(docID))); err != nil {
		return err
	}
	if err := ix.tx.Del(ix.keyFunc(docTermsKey(docID))); err != nil {
		return err
	}
	return ix.bumpStats(-1, -int64(length))
}

// MatchTerm returns the set of document ids with at least one posting
// for term.
func (ix *Index) MatchTerm(term string) (*roaring64.Bitmap, error) {
	prefix := ix.keyFunc(postingPrefix(term))
	start, end := prefixRange(prefix)
	kvs, err := ix.tx.Scan(kv.KeyRange{Start: start, End: end}, 0, nil)
	if err != nil {
		return nil, err
	}
	out := roaring64.New()
	for _, e := range kvs {
		suffix := e.Key[len(prefix):]
		if len(suffix) != 8 {
			continue
		}
		out.Add(binary.BigEndian.Uint64(suffix))
	}
	return out, nil
}

// BooleanOp selects how multiple matched terms combine.
type BooleanOp int

const (
	// OpAnd intersects every term's matched doc set (the default).
	OpAnd BooleanOp = iota
	OpOr
)

// Match combines each term's doc set per op.
func (ix *Index) Match(terms []string, op BooleanOp) (*roaring64.Bitmap, error) {
	if len(terms) == 0 {
		return roaring64.New(), nil
	}
	acc, err := ix.MatchTerm(terms[0])
	if err != nil {
		return nil, err
	}
	for _, term := range terms[1:] {
		bm, err := ix.MatchTerm(term)
		if err != nil {
			return nil, err
		}
		if op == OpAnd {
			acc.And(bm)
		} else {
			acc.Or(bm)
		}
	}
	return acc, nil
}

func (ix *Index) bumpStats(docDelta int64, lenDelta int64) error {
	raw, err := ix.tx.Get(ix.keyFunc(statsKey()), nil)
	var docs, total int64
	if err == nil {
		docs, total = decodeStats(raw)
	} else if err != kv.ErrNotFound {
		return err
	}
	docs += docDelta
	total += lenDelta
	if docs < 0 {
		docs = 0
	}
	if total < 0 {
		total = 0
	}
	return ix.tx.Set(ix.keyFunc(statsKey()), encodeStats(docs, total))
}

// Stats returns the index's current document count and average
// document length, for the BM25 scorer.
func (ix *Index) Stats() (docCount uint64, avgDocLen float64, err error) {
	raw, err := ix.tx.Get(ix.keyFunc(statsKey()), nil)
	if err == kv.ErrNotFound {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	docs, total := decodeStats(raw)
	if docs <= 0 {
		return 0, 0, nil
	}
	return uint64(docs), float64(total) / float64(docs), nil
}

// DocFreq returns the number of documents with at least one posting
// for term, for BM25's idf term.
func (ix *Index) DocFreq(term string) (uint64, error) {
	prefix := ix.keyFunc(postingPrefix(term))
	start, end := prefixRange(prefix)
	keys, err := ix.tx.Keys(kv.KeyRange{Start: start, End: end}, 0, nil)
	if err != nil {
		return 0, err
	}
	return uint64(len(keys)), nil
}

// DocLen returns docID's total indexed term count.
func (ix *Index) DocLen(docID uint64) (uint64, error) {
	raw, err := ix.tx.Get(ix.keyFunc(docLenKey(docID)), nil)
	if err == kv.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, _ := decodeU64(raw)
	return v, nil
}

// Posting returns docID's posting for term, if any.
func (ix *Index) Posting(term string, docID uint64) (*Posting, bool, error) {
	raw, err := ix.tx.Get(ix.keyFunc(postingKey(term, docID)), nil)
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	p, err := decodePosting(raw)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func prefixRange(prefix []byte) (start, end []byte) {
	end = make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return prefix, end[:i+1]
		}
	}
	return prefix, nil
}

func encodeU64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func decodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("fulltext: corrupt u64 (%d bytes)", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeStats(docs, total int64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(docs))
	binary.BigEndian.PutUint64(buf[8:16], uint64(total))
	return buf
}

func decodeStats(b []byte) (int64, int64) {
	if len(b) != 16 {
		return 0, 0
	}
	return int64(binary.BigEndian.Uint64(b[0:8])), int64(binary.BigEndian.Uint64(b[8:16]))
}

func encodeTermList(terms []string) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(terms)))
	for _, term := range terms {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(term)))
		buf.WriteString(term)
	}
	return buf.Bytes()
}

func decodeTermList(b []byte) ([]string, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("fulltext: corrupt term list")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("fulltext: truncated term list")
		}
		l := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < l {
			return nil, fmt.Errorf("fulltext: truncated term")
		}
		out = append(out, string(b[:l]))
		b = b[l:]
	}
	return out, nil
}

func encodePosting(p *Posting) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, p.Freq)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(p.Offsets)))
	for _, o := range p.Offsets {
		_ = binary.Write(&buf, binary.BigEndian, uint32(o.FieldIndex))
		_ = binary.Write(&buf, binary.BigEndian, uint32(o.CharStart))
		_ = binary.Write(&buf, binary.BigEndian, uint32(o.CharEnd))
	}
	return buf.Bytes()
}

func decodePosting(b []byte) (*Posting, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("fulltext: corrupt posting")
	}
	freq := binary.BigEndian.Uint32(b[0:4])
	n := binary.BigEndian.Uint32(b[4:8])
	b = b[8:]
	p := &Posting{Freq: freq}
	for i := uint32(0); i < n; i++ {
		if len(b) < 12 {
			return nil, fmt.Errorf("fulltext: truncated offsets")
		}
		fi := binary.BigEndian.Uint32(b[0:4])
		cs := binary.BigEndian.Uint32(b[4:8])
		ce := binary.BigEndian.Uint32(b[8:12])
		p.Offsets = append(p.Offsets, Offset{FieldIndex: int(fi), CharStart: int(cs), CharEnd: int(ce)})
		b = b[12:]
	}
	return p, nil
}
