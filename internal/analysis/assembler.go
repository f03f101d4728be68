// Package analysis builds grammar analyses: it diffs an original text against
// its corrected form at paragraph and sentence level and assembles the
// [types.GrammarAnalysisResponse].
//
// [Assembler] is the pure part and never calls the correction collaborator.
// [Service] runs correction first, then assembly, and also dispatches the
// insights and combined analysis types.
package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scrivener/internal/diff"
	"github.com/MrWong99/scrivener/internal/explain"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/sentence"
	"github.com/MrWong99/scrivener/pkg/types"
)

// ExplanationsDisabled is the explanation of every non-padding sentence when
// explanations were not requested.
const ExplanationsDisabled = "Explanations disabled for this request."

// Explainer describes the edits between a sentence and its correction. It
// must not fail; errors degrade to fallback text inside the implementation.
type Explainer interface {
	Explain(ctx context.Context, original, corrected string, changes []types.Change) string
}

// BatchExplainer describes several sentence corrections in one call.
type BatchExplainer interface {
	ExplainBatch(ctx context.Context, pairs []explain.Pair) string
}

// AssemblerOption configures an [Assembler].
type AssemblerOption func(*Assembler)

// WithBuilder sets the diff builder. Default: [diff.DefaultConfig].
func WithBuilder(b *diff.Builder) AssemblerOption {
	return func(a *Assembler) { a.builder = b }
}

// WithSplitter sets the sentence splitter. Default: [sentence.Simple].
func WithSplitter(s sentence.Splitter) AssemblerOption {
	return func(a *Assembler) { a.splitter = s }
}

// WithAligner sets the sentence aligner.
func WithAligner(al *sentence.Aligner) AssemblerOption {
	return func(a *Assembler) { a.aligner = al }
}

// WithExplainer sets the explanation collaborator. Without one, requested
// explanations come back as [explain.Unavailable].
func WithExplainer(e Explainer) AssemblerOption {
	return func(a *Assembler) { a.explainer = e }
}

// WithBatchExplainer sends all changed sentences of one analysis to b in a
// single call, and every one of them carries the combined message. It takes
// precedence over [WithExplainer].
func WithBatchExplainer(b BatchExplainer) AssemblerOption {
	return func(a *Assembler) { a.batch = b }
}

// WithExplainConcurrency bounds how many explanations are generated at once.
// Default: 1, one sentence after another.
func WithExplainConcurrency(n int) AssemblerOption {
	return func(a *Assembler) { a.explainConcurrency = n }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) AssemblerOption {
	return func(a *Assembler) { a.metrics = m }
}

// Assembler produces grammar analyses from an (original, corrected) pair. It
// holds no per-call state and is safe for concurrent use.
type Assembler struct {
	builder            *diff.Builder
	splitter           sentence.Splitter
	aligner            *sentence.Aligner
	explainer          Explainer
	batch              BatchExplainer
	explainConcurrency int
	metrics            *observe.Metrics
}

// NewAssembler returns an Assembler with the given options applied over the
// defaults.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		builder:            diff.NewBuilder(diff.DefaultConfig()),
		splitter:           sentence.Simple{},
		explainConcurrency: 1,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.aligner == nil {
		a.aligner = sentence.NewAligner(sentence.WithDissimilarHook(
			func(ctx context.Context, _ sentence.Pair, _ float64) {
				a.metrics.RecordDissimilarPair(ctx)
			},
		))
	}
	if a.explainConcurrency < 1 {
		a.explainConcurrency = 1
	}
	return a
}

// Splitter returns the configured sentence splitter.
func (a *Assembler) Splitter() sentence.Splitter { return a.splitter }

// Changes diffs x against y and records the diff metrics under scope.
func (a *Assembler) Changes(ctx context.Context, scope, x, y string) ([]types.Change, error) {
	start := time.Now()
	changes, err := a.builder.Changes(x, y)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordDiff(ctx, scope, time.Since(start), len(changes))
	return changes, nil
}

// Analyze diffs original against corrected as a whole and sentence by
// sentence.
//
// With includeExplanations false every matched sentence carries
// [ExplanationsDisabled]. With it true, sentences without changes carry
// [explain.NoCorrections] and the rest are sent to the explainer. Padding
// entries always carry their fixed explanation and no changes.
func (a *Assembler) Analyze(ctx context.Context, original, corrected string, includeExplanations bool) (*types.GrammarAnalysisResponse, error) {
	ctx, span := observe.StartSpan(ctx, "analysis.assemble")
	defer span.End()
	start := time.Now()

	paragraph, err := a.Changes(ctx, "paragraph", original, corrected)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	pairs := a.aligner.Align(ctx, a.splitter.Split(original), a.splitter.Split(corrected))

	sentences := make([]types.SentenceAnalysis, len(pairs))
	var pending []int
	for i, p := range pairs {
		sa := types.SentenceAnalysis{
			SentenceIndex: p.Index,
			Original:      p.Original,
			Corrected:     p.Corrected,
			Changes:       []types.Change{},
		}
		if p.Padding != sentence.PadNone {
			sa.Explanation = ptr(p.Padding.Explanation())
			sentences[i] = sa
			continue
		}

		changes, err := a.Changes(ctx, "sentence", p.Original, p.Corrected)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		sa.Changes = changes

		switch {
		case !includeExplanations:
			sa.Explanation = ptr(ExplanationsDisabled)
		case len(changes) == 0:
			sa.Explanation = ptr(explain.NoCorrections)
		default:
			pending = append(pending, i)
		}
		sentences[i] = sa
	}

	a.explainAll(ctx, sentences, pending)

	a.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", "grammar")))

	return &types.GrammarAnalysisResponse{
		Original:       original,
		Corrected:      corrected,
		ParagraphDiffs: paragraph,
		Sentences:      sentences,
	}, nil
}

// explainAll fills the explanation of every sentence listed in idx. Each
// goroutine writes only its own slot.
func (a *Assembler) explainAll(ctx context.Context, sentences []types.SentenceAnalysis, idx []int) {
	if len(idx) == 0 {
		return
	}
	if a.batch != nil {
		pairs := make([]explain.Pair, len(idx))
		for j, i := range idx {
			pairs[j] = explain.Pair{Original: sentences[i].Original, Corrected: sentences[i].Corrected}
		}
		msg := a.batch.ExplainBatch(ctx, pairs)
		for _, i := range idx {
			sentences[i].Explanation = ptr(msg)
		}
		return
	}
	if a.explainer == nil {
		for _, i := range idx {
			sentences[i].Explanation = ptr(explain.Unavailable)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(a.explainConcurrency)
	for _, i := range idx {
		g.Go(func() error {
			s := &sentences[i]
			s.Explanation = ptr(a.explainer.Explain(ctx, s.Original, s.Corrected, s.Changes))
			return nil
		})
	}
	_ = g.Wait()
}

func ptr(s string) *string { return &s }
