package sentence

import (
	"context"
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/scrivener/internal/observe"
)

// Explanations attached to padding entries.
const (
	ExplanationAdded   = "New sentence added."
	ExplanationRemoved = "Sentence removed."
)

// Padding marks an aligned pair that has no counterpart on one side.
type Padding uint8

const (
	PadNone Padding = iota
	// PadAdded: the corrected text has a sentence beyond the original's end.
	PadAdded
	// PadRemoved: the original text has a sentence beyond the corrected's end.
	PadRemoved
)

// Explanation returns the fixed explanation for a padding entry, or "".
func (p Padding) Explanation() string {
	switch p {
	case PadAdded:
		return ExplanationAdded
	case PadRemoved:
		return ExplanationRemoved
	default:
		return ""
	}
}

// Pair is one aligned position.
type Pair struct {
	Index     int
	Original  string
	Corrected string
	Padding   Padding
}

// Align pairs original and corrected sentences by index. Positions past the
// shorter sequence become padding entries with the missing side empty.
//
// Alignment is positional, not content based: a sentence inserted or dropped
// in the middle shifts every later pairing.
func Align(original, corrected []string) []Pair {
	n := max(len(original), len(corrected))
	pairs := make([]Pair, n)
	for i := range n {
		p := Pair{Index: i}
		switch {
		case i < len(original) && i < len(corrected):
			p.Original, p.Corrected = original[i], corrected[i]
		case i < len(corrected):
			p.Corrected, p.Padding = corrected[i], PadAdded
		default:
			p.Original, p.Padding = original[i], PadRemoved
		}
		pairs[i] = p
	}
	return pairs
}

// Similarity is the case-insensitive Jaro-Winkler similarity of a and b in
// [0, 1]. Identical strings score 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return matchr.JaroWinkler(strings.ToLower(a), strings.ToLower(b), true)
}

const defaultSimilarityThreshold = 0.5

// AlignerOption configures an [Aligner].
type AlignerOption func(*Aligner)

// WithSimilarityThreshold sets the score below which a positional pair is
// reported as dissimilar. Zero or less disables the check. Default: 0.5.
func WithSimilarityThreshold(threshold float64) AlignerOption {
	return func(a *Aligner) {
		a.threshold = threshold
	}
}

// WithDissimilarHook registers fn to be called for every dissimilar pair.
func WithDissimilarHook(fn func(ctx context.Context, p Pair, score float64)) AlignerOption {
	return func(a *Aligner) {
		a.onDissimilar = fn
	}
}

// Aligner wraps [Align] with a quality check: matched pairs whose texts look
// unrelated are logged, since they usually mean an upstream sentence shift.
// The alignment itself is never altered.
type Aligner struct {
	threshold    float64
	onDissimilar func(ctx context.Context, p Pair, score float64)
}

// NewAligner returns an [Aligner] with the given options.
func NewAligner(opts ...AlignerOption) *Aligner {
	a := &Aligner{threshold: defaultSimilarityThreshold}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Align aligns the sequences and runs the similarity check.
func (a *Aligner) Align(ctx context.Context, original, corrected []string) []Pair {
	pairs := Align(original, corrected)
	if a.threshold <= 0 {
		return pairs
	}
	for _, p := range pairs {
		if p.Padding != PadNone {
			continue
		}
		score := Similarity(p.Original, p.Corrected)
		if score >= a.threshold {
			continue
		}
		observe.Logger(ctx).LogAttrs(ctx, slog.LevelWarn, "aligned sentences look unrelated",
			slog.Int("sentence_index", p.Index),
			slog.Float64("similarity", score),
			slog.Int("original_sentences", len(original)),
			slog.Int("corrected_sentences", len(corrected)),
		)
		if a.onDissimilar != nil {
			a.onDissimilar(ctx, p, score)
		}
	}
	return pairs
}
