// Package analyzer splits field values into tokens and rewrites them
// through a filter chain before they reach the full-text index
// (pkg/fulltext). Classification runs on unicode directly, in a plain
// character-loop style rather than pulling in a separate tokenizer
// library.
package analyzer

import "unicode"

// TokenizerKind selects one splitting rule. Multiple kinds can be
// stacked; a boundary fires if any configured kind would split there.
type TokenizerKind int

const (
	// Blank splits on runs of whitespace.
	Blank TokenizerKind = iota
	// Class splits whenever the character class changes between
	// alphabetic, numeric, whitespace, and punctuation.
	Class
	// Camel splits when entering an uppercase letter after a
	// non-uppercase one, starting a new token at the uppercase letter.
	Camel
	// Punct splits on every ASCII punctuation character.
	Punct
)

// Token is one span of the original input plus its offsets. ByteStart/
// ByteEnd index into the original UTF-8 bytes; CharStart/CharEnd index
// into runes, for callers that need character-granularity offsets.
type Token struct {
	Text      string
	CharStart int
	CharEnd   int
	ByteStart int
	ByteEnd   int
	Length    int
}

// Tokens owns the input string and the token spans produced from it.
// Offsets in every Token remain tied to this input even after a filter
// chain rewrites the term text, so highlighting can still locate the
// original byte span.
type Tokens struct {
	input  string
	tokens []Token
}

// GetStr returns the original slice of input that tok spans.
func (t *Tokens) GetStr(tok Token) string {
	return t.input[tok.ByteStart:tok.ByteEnd]
}

// All returns every token produced by Tokenize, in order.
func (t *Tokens) All() []Token {
	return t.tokens
}

// isValidForIndexing reports whether r belongs in a token: alphanumeric
// runes and ASCII punctuation. Anything else (whitespace, control
// characters, non-ASCII symbols) is a separator and its span is
// skipped rather than emitted as an empty token.
func isValidForIndexing(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return r < unicode.MaxASCII && unicode.IsPunct(r)
}

type charClass int

const (
	classNone charClass = iota
	classAlpha
	classDigit
	classSpace
	classPunct
)

func classify(r rune) charClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r):
		return classAlpha
	case unicode.IsDigit(r):
		return classDigit
	case r < unicode.MaxASCII && unicode.IsPunct(r):
		return classPunct
	default:
		return classNone
	}
}

func isASCIIPunct(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsPunct(r)
}

// Tokenize splits input into Tokens according to kinds. Every byte of
// input is accounted for: each returned token's byte span plus the
// skipped separator spans between tokens reconstruct the input exactly.
func Tokenize(input string, kinds []TokenizerKind) *Tokens {
	has := func(k TokenizerKind) bool {
		for _, kk := range kinds {
			if kk == k {
				return true
			}
		}
		return false
	}
	// Blank needs no extra boundary logic: whitespace is never "valid
	// for indexing" and already forces a flush below, which is exactly
	// a split on runs of whitespace.
	wantClass := has(Class)
	wantCamel := has(Camel)
	wantPunct := has(Punct)

	runes := []rune(input)
	byteOffsets := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += len(string(r))
	}
	byteOffsets[len(runes)] = off

	out := &Tokens{input: input}

	start := -1
	var prevClass charClass
	var prevWasUpper bool
	var prevWasPunct bool

	flush := func(end int) {
		if start < 0 || end <= start {
			start = -1
			return
		}
		text := string(runes[start:end])
		out.tokens = append(out.tokens, Token{
			Text:      text,
			CharStart: start,
			CharEnd:   end,
			ByteStart: byteOffsets[start],
			ByteEnd:   byteOffsets[end],
			Length:    end - start,
		})
		start = -1
	}

	for i, r := range runes {
		if !isValidForIndexing(r) {
			flush(i)
			prevClass = classNone
			prevWasUpper = false
			prevWasPunct = false
			continue
		}

		punct := isASCIIPunct(r)
		boundary := false
		if start < 0 {
			boundary = true
		} else {
			cls := classify(r)
			if wantClass && cls != prevClass {
				boundary = true
			}
			if wantPunct && (punct || prevWasPunct) {
				boundary = true
			}
			if wantCamel && unicode.IsUpper(r) && !prevWasUpper {
				boundary = true
			}
		}
		if boundary && start >= 0 {
			flush(i)
		}
		if start < 0 {
			start = i
		}
		prevClass = classify(r)
		prevWasUpper = unicode.IsUpper(r)
		prevWasPunct = punct
	}
	flush(len(runes))

	return out
}
