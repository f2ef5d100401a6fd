package planner

import (
	"context"

	"github.com/cuemby/polydb/pkg/analyzer"
	"github.com/cuemby/polydb/pkg/fulltext"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/record"
	"github.com/cuemby/polydb/pkg/value"
)

// fulltextBinding is the live handle for one Search/FullText IndexDef.
// The analyzer pipeline is fixed to Blank tokenization + lowercasing:
// catalog.IndexDef.AnalyzerName is reserved for a future named-analyzer
// definition table (DEFINE ANALYZER), not yet part of this core, so
// every full-text index currently shares one pipeline.
type fulltextBinding struct {
	ref     IndexReference
	ix      *fulltext.Index
	docs    *DocIDRegistry
	scorer  *fulltext.Scorer
	filters []analyzer.Filter
}

func newFulltextBinding(tx kv.Tx, ref IndexReference) *fulltextBinding {
	keyFunc := func(suffix []byte) []byte {
		return indexDataKey(ref.NS, ref.DB, ref.Tb, ref.Def.ID, append([]byte{0x20}, suffix...))
	}
	ix := fulltext.NewIndex(tx, keyFunc, ref.Def.Highlight)
	k1, b := ref.Def.BM25K1, ref.Def.BM25B
	if k1 == 0 {
		k1 = fulltext.DefaultK1
	}
	if b == 0 {
		b = fulltext.DefaultB
	}
	return &fulltextBinding{
		ref:     ref,
		ix:      ix,
		docs:    NewDocIDRegistry(ref.NS, ref.DB, ref.Tb, ref.Def.ID),
		scorer:  fulltext.NewScorer(ix, k1, b),
		filters: []analyzer.Filter{analyzer.LowercaseFilter{}},
	}
}

// analyzeField tokenizes one field's text with this binding's pipeline.
func (b *fulltextBinding) analyzeField(text string) []analyzer.Term {
	toks := analyzer.Tokenize(text, []analyzer.TokenizerKind{analyzer.Blank})
	return toks.ApplyFilters(b.filters)
}

// IndexDocument tokenizes fields (in field-index order) and writes
// their postings under recordKey's doc id.
func (b *fulltextBinding) IndexDocument(tx kv.Tx, recordKey []byte, fields []string) error {
	docID, err := b.docs.ResolveDocID(tx, recordKey)
	if err != nil {
		return err
	}
	fieldTerms := make([][]analyzer.Term, len(fields))
	for i, f := range fields {
		fieldTerms[i] = b.analyzeField(f)
	}
	return b.ix.IndexDocument(docID, fieldTerms)
}

// RemoveDocument deletes recordKey's postings and doc-id mapping.
func (b *fulltextBinding) RemoveDocument(tx kv.Tx, recordKey []byte) error {
	docID, err := b.docs.ResolveDocID(tx, recordKey)
	if err != nil {
		return err
	}
	if err := b.ix.RemoveDocument(docID); err != nil {
		return err
	}
	return b.docs.Forget(tx, recordKey)
}

func (b *fulltextBinding) matchIterator(tx kv.Tx, terms []string) (ThingIterator, error) {
	bitmap, err := b.ix.Match(terms, fulltext.OpAnd)
	if err != nil {
		return nil, err
	}
	return &fulltextIterator{tx: tx, binding: b, it: bitmap.Iterator()}, nil
}

type fulltextIterator struct {
	tx      kv.Tx
	binding *fulltextBinding
	it      interface {
		HasNext() bool
		Next() uint64
	}
}

func (it *fulltextIterator) Next(ctx context.Context) (record.RecordId, bool, error) {
	for it.it.HasNext() {
		docID := it.it.Next()
		key, ok, err := it.binding.docs.RecordKeyFor(it.tx, docID)
		if err != nil {
			return record.RecordId{}, false, err
		}
		if !ok {
			continue
		}
		return record.RecordId{Table: it.binding.ref.Tb, Key: value.Bytes(key)}, true, nil
	}
	return record.RecordId{}, false, nil
}

func (it *fulltextIterator) Close() error { return nil }
