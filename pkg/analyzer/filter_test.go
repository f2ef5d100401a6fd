package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowercaseFilter(t *testing.T) {
	toks := Tokenize("The Quick Brown Fox", []TokenizerKind{Blank})
	terms := toks.ApplyFilters([]Filter{LowercaseFilter{}})
	var texts []string
	for _, term := range terms {
		texts = append(texts, term.Text)
	}
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, texts)
}

func TestApplyFiltersPreservesOriginalOffsets(t *testing.T) {
	toks := Tokenize("Hello World", []TokenizerKind{Blank})
	terms := toks.ApplyFilters([]Filter{LowercaseFilter{}})
	require.Len(t, terms, 2)
	assert.Equal(t, "hello", terms[0].Text)
	assert.Equal(t, 0, terms[0].Token.CharStart)
	assert.Equal(t, 5, terms[0].Token.CharEnd)
}

func TestEdgeNgramFilterExpandsPrefixes(t *testing.T) {
	toks := Tokenize("search", []TokenizerKind{Blank})
	terms := toks.ApplyFilters([]Filter{EdgeNgramFilter{Min: 2, Max: 4}})
	var texts []string
	for _, term := range terms {
		texts = append(texts, term.Text)
	}
	assert.Equal(t, []string{"se", "sea", "sear"}, texts)
}

func TestEdgeNgramFilterDropsShortTokens(t *testing.T) {
	toks := Tokenize("a ok", []TokenizerKind{Blank})
	terms := toks.ApplyFilters([]Filter{EdgeNgramFilter{Min: 2, Max: 4}})
	require.Len(t, terms, 1)
	assert.Equal(t, "ok", terms[0].Text)
}

func TestFilterChainComposesLeftToRight(t *testing.T) {
	toks := Tokenize("Running", []TokenizerKind{Blank})
	terms := toks.ApplyFilters([]Filter{LowercaseFilter{}, SnowballFilter{Lang: "en"}})
	require.Len(t, terms, 1)
	assert.Equal(t, "runn", terms[0].Text)
}

func TestIgnoreDropsToken(t *testing.T) {
	toks := Tokenize("a bb ccc", []TokenizerKind{Blank})
	terms := toks.ApplyFilters([]Filter{EdgeNgramFilter{Min: 3, Max: 5}})
	require.Len(t, terms, 1)
	assert.Equal(t, "ccc", terms[0].Text)
}
