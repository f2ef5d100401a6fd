package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBlankSplitsOnWhitespace(t *testing.T) {
	toks := Tokenize("The Quick Brown Fox", []TokenizerKind{Blank})
	texts := textsOf(toks)
	assert.Equal(t, []string{"The", "Quick", "Brown", "Fox"}, texts)
}

func TestTokenizeClassSplitsOnClassChange(t *testing.T) {
	toks := Tokenize("abc123", []TokenizerKind{Class})
	texts := textsOf(toks)
	assert.Equal(t, []string{"abc", "123"}, texts)
}

func TestTokenizeCamelSplitsOnUppercaseEntry(t *testing.T) {
	toks := Tokenize("fooBarBaz", []TokenizerKind{Camel})
	texts := textsOf(toks)
	assert.Equal(t, []string{"foo", "Bar", "Baz"}, texts)
}

func TestTokenizePunctSplitsOnEveryPunct(t *testing.T) {
	toks := Tokenize("a,b.c", []TokenizerKind{Punct})
	texts := textsOf(toks)
	assert.Equal(t, []string{"a", ",", "b", ".", "c"}, texts)
}

func TestTokenizeSkipsNonIndexableCharacters(t *testing.T) {
	toks := Tokenize("café ☃ ok", []TokenizerKind{Blank})
	texts := textsOf(toks)
	assert.Equal(t, []string{"café", "ok"}, texts)
}

func TestOffsetsReconstructInput(t *testing.T) {
	input := "The Quick Brown Fox"
	toks := Tokenize(input, []TokenizerKind{Blank})
	for _, tok := range toks.tokens {
		require.Equal(t, tok.Text, input[tok.ByteStart:tok.ByteEnd])
		require.Equal(t, tok.Length, tok.CharEnd-tok.CharStart)
	}
}

func TestGetStrReturnsOriginalSlice(t *testing.T) {
	toks := Tokenize("Hello World", []TokenizerKind{Blank})
	require.Len(t, toks.tokens, 2)
	assert.Equal(t, "Hello", toks.GetStr(toks.tokens[0]))
	assert.Equal(t, "World", toks.GetStr(toks.tokens[1]))
}

func textsOf(toks *Tokens) []string {
	var out []string
	for _, tok := range toks.All() {
		out = append(out, toks.GetStr(tok))
	}
	return out
}
