package fulltext

import "strings"

type bound struct {
	pos  int
	open bool
}

// Highlight splices prefix/suffix around each of a document's matched
// term offsets within one field's original value, using offsets
// recorded at index time (IndexDocument with highlighting enabled).
// Offsets are in characters; splicing walks the string once rune by
// rune, inserting prefix/suffix at the recorded boundaries.
func Highlight(fieldValue string, offsets []Offset, prefix, suffix string) string {
	if len(offsets) == 0 {
		return fieldValue
	}
	runes := []rune(fieldValue)

	var bounds []bound
	for _, o := range offsets {
		if o.CharStart < 0 || o.CharEnd > len(runes) || o.CharStart >= o.CharEnd {
			continue
		}
		bounds = append(bounds, bound{pos: o.CharStart, open: true}, bound{pos: o.CharEnd, open: false})
	}
	if len(bounds) == 0 {
		return fieldValue
	}
	sortBounds(bounds)

	var out strings.Builder
	last := 0
	for _, bd := range bounds {
		out.WriteString(string(runes[last:bd.pos]))
		if bd.open {
			out.WriteString(prefix)
		} else {
			out.WriteString(suffix)
		}
		last = bd.pos
	}
	out.WriteString(string(runes[last:]))
	return out.String()
}

func sortBounds(b []bound) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j].pos < b[j-1].pos; j-- {
			b[j], b[j-1] = b[j-1], b[j]
		}
	}
}

// MatchedOffsets returns the raw (field_index, char_start, char_end)
// triples for every term in terms that docID has a posting for.
func MatchedOffsets(ix *Index, terms []string, docID uint64) ([]Offset, error) {
	var out []Offset
	for _, term := range terms {
		p, ok, err := ix.Posting(term, docID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, p.Offsets...)
	}
	return out, nil
}
