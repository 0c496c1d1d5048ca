package lexical

import (
	"strings"
	"unicode"
)

// SimpleTokenizer lowercases and splits on any rune that is not a letter,
// digit, or underscore. It is the default tokenizer the engine wires in;
// callers with richer needs supply their own Tokenizer.
type SimpleTokenizer struct{}

// Tokenize implements Tokenizer.
func (SimpleTokenizer) Tokenize(text []byte) []string {
	return strings.FieldsFunc(strings.ToLower(string(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
