// Package sentence splits paragraphs into sentences and aligns the sentence
// sequences of an original and a corrected text.
package sentence

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Splitter turns a paragraph into its ordered, whitespace-trimmed, non-empty
// sentences.
type Splitter interface {
	Split(text string) []string
}

// Kind names a [Splitter] implementation in configuration.
type Kind string

const (
	KindPunkt  Kind = "punkt"
	KindSimple Kind = "simple"
)

// IsValid reports whether k names a known splitter.
func (k Kind) IsValid() bool {
	return k == KindPunkt || k == KindSimple
}

// New returns the splitter named by kind. An empty kind selects [KindPunkt].
func New(kind Kind) (Splitter, error) {
	switch kind {
	case "", KindPunkt:
		return NewPunkt()
	case KindSimple:
		return Simple{}, nil
	default:
		return nil, fmt.Errorf("sentence: unknown splitter %q", kind)
	}
}

// Punkt splits with the unsupervised punkt model trained on English text. It
// knows common abbreviations and initials.
type Punkt struct {
	mu  sync.Mutex
	tok *sentences.DefaultSentenceTokenizer
}

// NewPunkt loads the bundled English punkt model.
func NewPunkt() (*Punkt, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("sentence: load punkt model: %w", err)
	}
	return &Punkt{tok: tok}, nil
}

// Split implements [Splitter].
func (p *Punkt) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	p.mu.Lock()
	toks := p.tok.Tokenize(text)
	p.mu.Unlock()

	out := make([]string, 0, len(toks))
	for _, s := range toks {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Simple is a rule-based splitter. A sentence ends at a run of '.', '!' or
// '?' (plus any closing quotes or brackets) that is followed by whitespace or
// the end of the text, unless the word before the period is a known
// abbreviation or a single capital initial.
type Simple struct{}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true,
	"jr": true, "st": true, "vs": true, "e.g": true, "i.e": true, "cf": true,
	"approx": true, "no": true, "fig": true, "inc": true, "ltd": true,
}

// Split implements [Splitter].
func (Simple) Split(text string) []string {
	out := []string{}
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}

		end := i + size
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(next) && !isCloser(next) {
				break
			}
			end += n
		}

		atBoundary := end == len(text)
		if !atBoundary {
			next, _ := utf8.DecodeRuneInString(text[end:])
			atBoundary = unicode.IsSpace(next)
		}
		if atBoundary && !(r == '.' && endsWithAbbreviation(text[start:i])) {
			if s := strings.TrimSpace(text[start:end]); s != "" {
				out = append(out, s)
			}
			start = end
		}
		i = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}

// endsWithAbbreviation reports whether the last word of s (the text before a
// period) is an abbreviation or a single upper-case initial.
func endsWithAbbreviation(s string) bool {
	word := s
	if idx := strings.LastIndexFunc(s, unicode.IsSpace); idx >= 0 {
		word = s[idx+1:]
	}
	word = strings.TrimLeft(word, "\"'([{“‘")
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	return abbreviations[strings.ToLower(word)]
}
