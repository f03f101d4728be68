// Package insights generates content suggestions (thought starters, research
// leads, statistics to look up) for a piece of writing.
//
// Short texts give the model nothing to work with, so a [Generator] refuses
// any text below a sentence and word threshold with an
// [InsufficientContentError].
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/sentence"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
	"github.com/MrWong99/scrivener/pkg/types"
)

var (
	// ErrUnparseable is returned when the model reply holds no insight list.
	ErrUnparseable = errors.New("insights: unparseable model reply")

	// ErrCompletion wraps failures of the language model call.
	ErrCompletion = errors.New("insights: completion failed")
)

// InsufficientContentError reports that a text is too short to analyze.
type InsufficientContentError struct {
	MinSentences int
	MinWords     int

	// Sentences and Words are what the rejected text contained.
	Sentences int
	Words     int
}

func (e *InsufficientContentError) Error() string {
	return fmt.Sprintf("need at least %d sentences and %d words for insights analysis", e.MinSentences, e.MinWords)
}

// Config tunes a [Generator].
type Config struct {
	MinSentences int
	MinWords     int
	Temperature  float64
	TopP         float64
}

// DefaultConfig returns the stock thresholds and sampling parameters.
func DefaultConfig() Config {
	return Config{
		MinSentences: 3,
		MinWords:     50,
		Temperature:  0.1,
		TopP:         0.9,
	}
}

const systemPrompt = `You are a research assistant and content strategist. Analyze the text the user sends and offer insights, thought starters and references that help expand and strengthen it.

Give 3 or 4 distinct, specific, actionable suggestions, numbered by "id". Draw their categories from:
- Thought Starters & Ideas: related angles, deeper questions, alternative perspectives.
- Research References & Sources: relevant articles, papers, authoritative sources, current developments.
- Data & Statistics: figures worth citing and where to find them.
- Content Expansion Opportunities: subtopics, examples or case studies, missing context.
- Current Events & Trends: recent developments and timely angles.

Respond with ONLY a JSON array, no markdown and no text around it:
[
  {"id": 1, "category": "Thought Starters & Ideas", "suggestion": "...", "description": "why this is valuable", "references": ["link or title", "..."]}
]`

// Generator produces insights with an LLM. It is safe for concurrent use.
type Generator struct {
	llm      llm.Provider
	splitter sentence.Splitter
	cfg      Config
}

// New returns a Generator. Zero thresholds in cfg are taken from
// [DefaultConfig]; sampling parameters are used as given.
func New(provider llm.Provider, splitter sentence.Splitter, cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.MinSentences <= 0 {
		cfg.MinSentences = def.MinSentences
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = def.MinWords
	}
	return &Generator{llm: provider, splitter: splitter, cfg: cfg}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Check returns an [InsufficientContentError] when text is below the
// thresholds, nil otherwise. Words are whitespace separated.
func (g *Generator) Check(text string) error {
	sentences := len(g.splitter.Split(text))
	words := len(strings.Fields(text))
	if sentences >= g.cfg.MinSentences && words >= g.cfg.MinWords {
		return nil
	}
	return &InsufficientContentError{
		MinSentences: g.cfg.MinSentences,
		MinWords:     g.cfg.MinWords,
		Sentences:    sentences,
		Words:        words,
	}
}

// Generate analyzes fullContext when it is non-empty, else text. The
// response's Original is always text.
func (g *Generator) Generate(ctx context.Context, text, fullContext string) (*types.InsightsResponse, error) {
	log := observe.Logger(ctx)

	subject := text
	if strings.TrimSpace(fullContext) != "" {
		subject = fullContext
	}
	if err := g.Check(subject); err != nil {
		log.Info("insufficient content for insights", "chars", len(subject), "err", err)
		return nil, err
	}

	req := llm.UserPrompt(systemPrompt, "TEXT TO ANALYZE:\n"+subject)
	req.Temperature = g.cfg.Temperature
	req.TopP = g.cfg.TopP

	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if resp == nil {
		return nil, ErrUnparseable
	}

	list, err := parseInsights(resp.Content)
	if err != nil {
		log.Warn("insights reply not understood", "reply_chars", len(resp.Content), "err", err)
		return nil, err
	}
	return &types.InsightsResponse{Original: text, Insights: list}, nil
}

// parseInsights accepts a JSON array of insights, an {"insights": [...]}
// wrapper or a single insight object.
func parseInsights(content string) ([]types.Insight, error) {
	span, ok := llm.ExtractJSON(content)
	if !ok {
		return nil, ErrUnparseable
	}

	var list []types.Insight
	if strings.HasPrefix(span, "[") {
		if err := json.Unmarshal([]byte(span), &list); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
		}
	} else {
		var wrapper struct {
			Insights []types.Insight `json:"insights"`
		}
		if err := json.Unmarshal([]byte(span), &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
		}
		list = wrapper.Insights
		if list == nil {
			var single types.Insight
			if err := json.Unmarshal([]byte(span), &single); err == nil && single.Suggestion != "" {
				list = []types.Insight{single}
			}
		}
	}

	out := make([]types.Insight, 0, len(list))
	for _, in := range list {
		if strings.TrimSpace(in.Suggestion) == "" {
			continue
		}
		if in.References == nil {
			in.References = []string{}
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, ErrUnparseable
	}
	for i := range out {
		if out[i].ID == 0 {
			out[i].ID = i + 1
		}
	}
	return out, nil
}
