package analysis

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/store"
	"github.com/MrWong99/scrivener/pkg/provider/corrector"
	"github.com/MrWong99/scrivener/pkg/types"
)

var (
	// ErrCorrection wraps every failure of the correction collaborator.
	ErrCorrection = errors.New("analysis: correction failed")

	// ErrInvalidPrompt wraps request validation failures.
	ErrInvalidPrompt = errors.New("analysis: invalid prompt")

	// ErrInsightsDisabled is returned for insight requests when no insights
	// generator is configured.
	ErrInsightsDisabled = errors.New("analysis: insights are disabled")
)

// InsightsGenerator produces content insights for a text.
type InsightsGenerator interface {
	Generate(ctx context.Context, text, fullContext string) (*types.InsightsResponse, error)
}

// Recorder persists completed analyses.
type Recorder interface {
	Record(ctx context.Context, e store.Entry) error
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithInsights enables the insights and combined analysis types.
func WithInsights(g InsightsGenerator) ServiceOption {
	return func(s *Service) { s.insights = g }
}

// WithRecorder writes every successful analysis to r.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// Service runs full analyses for the transports. It is safe for concurrent
// use.
type Service struct {
	corrector corrector.Corrector
	assembler *Assembler
	insights  InsightsGenerator
	recorder  Recorder
}

// NewService returns a Service that corrects with c and assembles with a.
func NewService(c corrector.Corrector, a *Assembler, opts ...ServiceOption) *Service {
	s := &Service{corrector: c, assembler: a}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Assembler returns the underlying assembler.
func (s *Service) Assembler() *Assembler { return s.assembler }

// InsightsEnabled reports whether an insights generator is configured.
func (s *Service) InsightsEnabled() bool { return s.insights != nil }

// Correct calls the correction collaborator. Failures wrap [ErrCorrection].
func (s *Service) Correct(ctx context.Context, text string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "analysis.correct")
	defer span.End()

	corrected, err := s.corrector.Correct(ctx, text)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", ErrCorrection, err)
	}
	return corrected, nil
}

// Grammar corrects text and analyzes the result. A correction failure stops
// the analysis.
func (s *Service) Grammar(ctx context.Context, text string, includeExplanations bool) (*types.GrammarAnalysisResponse, error) {
	corrected, err := s.Correct(ctx, text)
	if err != nil {
		return nil, err
	}
	resp, err := s.assembler.Analyze(ctx, text, corrected, includeExplanations)
	if err != nil {
		return nil, err
	}
	s.record(ctx, string(types.AnalysisGrammar), text, corrected, resp.ChangeCount(), resp)
	return resp, nil
}

// Insights generates content insights for text, or for fullContext when set.
func (s *Service) Insights(ctx context.Context, text, fullContext string) (*types.InsightsResponse, error) {
	if s.insights == nil {
		return nil, ErrInsightsDisabled
	}
	ctx, span := observe.StartSpan(ctx, "analysis.insights")
	defer span.End()

	resp, err := s.insights.Generate(ctx, text, fullContext)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.record(ctx, string(types.AnalysisInsights), text, "", 0, resp)
	return resp, nil
}

// Both runs the grammar and insights analyses concurrently. A grammar
// failure fails the call. An insights failure leaves Insights nil and sets
// InsightsError unless the context itself was cancelled.
func (s *Service) Both(ctx context.Context, p types.Prompt) (*types.CombinedResponse, error) {
	if s.insights == nil {
		return nil, ErrInsightsDisabled
	}

	var (
		out         types.CombinedResponse
		insightsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		corrected, err := s.Correct(gctx, p.Text)
		if err != nil {
			return err
		}
		resp, err := s.assembler.Analyze(gctx, p.Text, corrected, p.IncludeExplanations)
		if err != nil {
			return err
		}
		out.Grammar = resp
		return nil
	})
	g.Go(func() error {
		resp, err := s.insights.Generate(gctx, p.Text, p.FullContext)
		if err != nil {
			insightsErr = err
			return nil
		}
		out.Insights = resp
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if insightsErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		observe.Logger(ctx).Warn("insights half of combined analysis failed", "err", insightsErr)
		out.InsightsError = insightsErr.Error()
	}
	s.record(ctx, string(types.AnalysisBoth), p.Text, out.Grammar.Corrected, out.Grammar.ChangeCount(), &out)
	return &out, nil
}

// Infer validates p and runs the analysis its type selects. The result is a
// *types.GrammarAnalysisResponse, *types.InsightsResponse or
// *types.CombinedResponse.
func (s *Service) Infer(ctx context.Context, p types.Prompt) (any, error) {
	if err := p.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrompt, err)
	}
	switch p.AnalysisType {
	case types.AnalysisInsights:
		return s.Insights(ctx, p.Text, p.FullContext)
	case types.AnalysisBoth:
		return s.Both(ctx, p)
	default:
		return s.Grammar(ctx, p.Text, p.IncludeExplanations)
	}
}

// Diff returns the change list between original and corrected without any
// collaborator calls.
func (s *Service) Diff(ctx context.Context, original, corrected string) ([]types.Change, error) {
	return s.assembler.Changes(ctx, "paragraph", original, corrected)
}

// record writes an audit entry. Failures are logged and otherwise ignored.
func (s *Service) record(ctx context.Context, kind, original, corrected string, changes int, payload any) {
	if s.recorder == nil {
		return
	}
	log := observe.Logger(ctx)
	e, err := store.NewEntry(kind, original, corrected, changes, payload)
	if err == nil {
		err = s.recorder.Record(ctx, e)
	}
	if err != nil {
		log.Warn("failed to record analysis", "kind", kind, "err", err)
	}
}
