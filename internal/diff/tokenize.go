package diff

import "unicode"

type tokenClass uint8

const (
	classSpace tokenClass = iota
	classWord
	classOther
)

func classify(r rune) tokenClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '\'':
		return classWord
	default:
		return classOther
	}
}

// tokenize splits s into maximal runs of one class. Punctuation is emitted one
// rune per token so that "end." and "end!" share the "end" token.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	tokens := make([]string, 0, len(runes)/4+1)
	start := 0
	cur := classify(runes[0])
	for i := 1; i < len(runes); i++ {
		next := classify(runes[i])
		if next != cur || cur == classOther {
			tokens = append(tokens, string(runes[start:i]))
			start = i
			cur = next
		}
	}
	return append(tokens, string(runes[start:]))
}
