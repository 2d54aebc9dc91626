// Package tokenizer provides text tokenisation for the person index.
// It lower-cases input and splits on any rune that is not a letter or a
// digit. Person names are indexed as-is: no stemming and no stop-word
// removal, since both would mangle proper nouns.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into a slice of lowercased tokens. It is
// deterministic and side-effect-free; empty input or input consisting
// only of separators yields an empty slice.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
