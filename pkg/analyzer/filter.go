package analyzer

import "strings"

// FilterResultKind tags which variant of FilterResult a Filter produced.
type FilterResultKind int

const (
	// Unchanged means the token passes through as-is.
	Unchanged FilterResultKind = iota
	// NewTermKind replaces the token's text with Text, keeping the
	// token's original offsets for highlighting.
	NewTermKind
	// IgnoreKind drops the token entirely (it contributes no term).
	IgnoreKind
	// TermsKind expands one token into several terms (e.g. n-grams),
	// all sharing the source token's offsets.
	TermsKind
)

// FilterResult is the outcome of running one Filter over one Token.
type FilterResult struct {
	Kind  FilterResultKind
	Text  string
	Terms []string
}

func unchanged() FilterResult          { return FilterResult{Kind: Unchanged} }
func newTerm(text string) FilterResult { return FilterResult{Kind: NewTermKind, Text: text} }
func ignore() FilterResult             { return FilterResult{Kind: IgnoreKind} }
func terms(ts ...string) FilterResult  { return FilterResult{Kind: TermsKind, Terms: ts} }

// Filter rewrites a token's text. text is the token's current text
// (the original slice on the first filter in the chain, or the
// previous filter's output term on later ones).
type Filter interface {
	Apply(text string) FilterResult
}

// Term pairs a final indexed term with the original token it came
// from, so the full-text index and highlighter can recover offsets.
type Term struct {
	Text  string
	Token Token
}

// ApplyFilters runs every token in t through the filter chain in
// order, producing the final term list. A token that any filter turns
// into Ignore contributes nothing; TermsKind fans one token out into
// several Terms, all carrying that token's offsets.
func (t *Tokens) ApplyFilters(filters []Filter) []Term {
	var out []Term
	for _, tok := range t.tokens {
		texts := []string{t.GetStr(tok)}
		dropped := false
		for _, f := range filters {
			var next []string
			for _, txt := range texts {
				res := f.Apply(txt)
				switch res.Kind {
				case Unchanged:
					next = append(next, txt)
				case NewTermKind:
					next = append(next, res.Text)
				case IgnoreKind:
					// contributes nothing
				case TermsKind:
					next = append(next, res.Terms...)
				}
			}
			texts = next
			if len(texts) == 0 {
				dropped = true
				break
			}
		}
		if dropped {
			continue
		}
		for _, txt := range texts {
			out = append(out, Term{Text: txt, Token: tok})
		}
	}
	return out
}

// LowercaseFilter folds ASCII and Unicode case to lowercase.
type LowercaseFilter struct{}

func (LowercaseFilter) Apply(text string) FilterResult {
	lower := strings.ToLower(text)
	if lower == text {
		return unchanged()
	}
	return newTerm(lower)
}

// EdgeNgramFilter expands a token into every prefix of length between
// Min and Max runes (inclusive), used for prefix/autocomplete search.
// A token shorter than Min is dropped.
type EdgeNgramFilter struct {
	Min, Max int
}

func (f EdgeNgramFilter) Apply(text string) FilterResult {
	runes := []rune(text)
	if len(runes) < f.Min {
		return ignore()
	}
	max := f.Max
	if max > len(runes) {
		max = len(runes)
	}
	var out []string
	for n := f.Min; n <= max; n++ {
		out = append(out, string(runes[:n]))
	}
	return terms(out...)
}

// SnowballFilter approximates stemming by stripping a small fixed set
// of common English suffixes. No stemming library appears anywhere in
// the corpus, so this is a deliberately narrow stand-in rather than a
// real Snowball implementation. It removes the first suffix in
// snowballSuffixes that the term ends with, provided more than two
// characters remain ("running" -> "runn"; doubled consonants are not
// undone), and leaves anything else unchanged.
type SnowballFilter struct {
	Lang string
}

var snowballSuffixes = []string{"ing", "edly", "ed", "ly", "es", "s"}

func (f SnowballFilter) Apply(text string) FilterResult {
	for _, suf := range snowballSuffixes {
		if len(text) > len(suf)+2 && strings.HasSuffix(text, suf) {
			return newTerm(strings.TrimSuffix(text, suf))
		}
	}
	return unchanged()
}
