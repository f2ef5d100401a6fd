package fulltext

import "math"

// Scorer computes BM25 relevance scores against one Index's held
// document frequency and average-document-length statistics.
type Scorer struct {
	ix   *Index
	k1, b float64
}

// DefaultK1 and DefaultB are the conventional BM25 tuning constants,
// used when an index's definition doesn't override them.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// NewScorer builds a Scorer over ix with the given k1/b parameters.
func NewScorer(ix *Index, k1, b float64) *Scorer {
	return &Scorer{ix: ix, k1: k1, b: b}
}

// Score returns the BM25 score of docID against terms, summing each
// term's contribution: idf(term) * (freq*(k1+1)) / (freq + k1*(1 -
// b + b*docLen/avgDL)).
func (s *Scorer) Score(terms []string, docID uint64) (float64, error) {
	docCount, avgDL, err := s.ix.Stats()
	if err != nil {
		return 0, err
	}
	if docCount == 0 {
		return 0, nil
	}
	docLen, err := s.ix.DocLen(docID)
	if err != nil {
		return 0, err
	}

	var score float64
	for _, term := range terms {
		posting, ok, err := s.ix.Posting(term, docID)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		df, err := s.ix.DocFreq(term)
		if err != nil {
			return 0, err
		}
		idf := math.Log(1 + (float64(docCount)-float64(df)+0.5)/(float64(df)+0.5))
		freq := float64(posting.Freq)
		norm := 1 - s.b + s.b*float64(docLen)/avgDL
		score += idf * (freq * (s.k1 + 1)) / (freq + s.k1*norm)
	}
	return score, nil
}
