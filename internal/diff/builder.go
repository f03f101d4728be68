package diff

import (
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/MrWong99/scrivener/pkg/types"
)

// Granularity selects the unit the edit script is computed over.
type Granularity string

const (
	// GranularityWord diffs runs of letters, of whitespace and of punctuation
	// as atomic tokens, so a misspelt word becomes one replacement.
	GranularityWord Granularity = "word"

	// GranularityChar diffs individual code points.
	GranularityChar Granularity = "char"
)

// IsValid reports whether g is a known granularity.
func (g Granularity) IsValid() bool {
	return g == GranularityWord || g == GranularityChar
}

// Config tunes a [Builder].
type Config struct {
	Granularity Granularity

	// SemanticCleanup merges small edits separated by short equalities.
	SemanticCleanup bool

	// Timeout bounds the diff search. When it expires the script is still
	// valid but may not be minimal. Zero means no limit.
	Timeout time.Duration
}

// DefaultConfig returns word granularity with semantic cleanup and a one
// second search budget.
func DefaultConfig() Config {
	return Config{
		Granularity:     GranularityWord,
		SemanticCleanup: true,
		Timeout:         time.Second,
	}
}

// Builder computes edit scripts. A Builder is immutable after construction
// and may be shared across goroutines.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder for cfg. An invalid granularity falls back to
// [GranularityWord].
func NewBuilder(cfg Config) *Builder {
	if !cfg.Granularity.IsValid() {
		cfg.Granularity = GranularityWord
	}
	return &Builder{cfg: cfg}
}

// Config returns the builder's effective configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build returns the edit script transforming a into b. Identical inputs yield
// a single equal run, or no runs at all when both are empty.
func (b *Builder) Build(a, c string) ([]Operation, error) {
	if a == c {
		if a == "" {
			return nil, nil
		}
		return []Operation{{Op: OpEqual, Text: a}}, nil
	}

	// diffmatchpatch.DiffMatchPatch carries mutable tuning fields, so each
	// call gets its own.
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = b.cfg.Timeout

	var diffs []diffmatchpatch.Diff
	switch b.cfg.Granularity {
	case GranularityChar:
		diffs = dmp.DiffMain(a, c, false)
		if b.cfg.SemanticCleanup {
			diffs = dmp.DiffCleanupSemantic(diffs)
		}
	default:
		var ok bool
		diffs, ok = diffWords(dmp, a, c, b.cfg.SemanticCleanup)
		if !ok {
			diffs = dmp.DiffMain(a, c, false)
			if b.cfg.SemanticCleanup {
				diffs = dmp.DiffCleanupSemantic(diffs)
			}
		}
	}

	ops := make([]Operation, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		ops = append(ops, Operation{Op: Op(d.Type), Text: d.Text})
	}

	if Source(ops) != a || Target(ops) != c {
		return nil, fmt.Errorf("%w: script does not reproduce its inputs", ErrMalformedScript)
	}
	return ops, nil
}

// Changes builds the edit script for (a, c) and extracts its change list.
func (b *Builder) Changes(a, c string) ([]types.Change, error) {
	ops, err := b.Build(a, c)
	if err != nil {
		return nil, err
	}
	return Extract(ops)
}

// diffWords runs diff-match-patch over token symbols instead of characters.
// Semantic cleanup also runs on the symbols so merged clusters never split a
// token. It reports false when the inputs cannot be encoded or a symbol does
// not decode, in which case the caller falls back to character diffing.
func diffWords(dmp *diffmatchpatch.DiffMatchPatch, a, c string, cleanup bool) ([]diffmatchpatch.Diff, bool) {
	var tab symbolTable
	ra, ok := tab.encode(tokenize(a))
	if !ok {
		return nil, false
	}
	rc, ok := tab.encode(tokenize(c))
	if !ok {
		return nil, false
	}

	diffs := dmp.DiffMainRunes(ra, rc, false)
	if cleanup {
		diffs = dmp.DiffCleanupSemantic(diffs)
	}

	for i := range diffs {
		text, ok := tab.decode(diffs[i].Text)
		if !ok {
			return nil, false
		}
		diffs[i].Text = text
	}
	return diffs, true
}

// symbolTable assigns every distinct token a code point. Surrogate code points
// are skipped because they do not survive a string round trip.
type symbolTable struct {
	tokens []string
	index  map[string]rune
}

const (
	surrogateMin = 0xD800
	surrogateLen = 0x800
	maxSymbols   = 0x10FFFF + 1 - surrogateLen
)

func (t *symbolTable) encode(tokens []string) ([]rune, bool) {
	if t.index == nil {
		t.index = make(map[string]rune)
	}
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, seen := t.index[tok]
		if !seen {
			n := len(t.tokens)
			if n >= maxSymbols {
				return nil, false
			}
			r = rune(n)
			if r >= surrogateMin {
				r += surrogateLen
			}
			t.index[tok] = r
			t.tokens = append(t.tokens, tok)
		}
		out[i] = r
	}
	return out, true
}

func (t *symbolTable) decode(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		n := int(r)
		if r >= surrogateMin+surrogateLen {
			n -= surrogateLen
		}
		if n < 0 || n >= len(t.tokens) {
			return "", false
		}
		b.WriteString(t.tokens[n])
	}
	return b.String(), true
}
