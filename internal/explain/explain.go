// Package explain asks a language model to describe, in one short message,
// what changed between an original sentence and its corrected form.
//
// Explanations are decoration on top of the grammar analysis. The [Explainer]
// therefore never returns an error: provider failures and unparseable
// replies degrade to fallback text and a log line.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
	"github.com/MrWong99/scrivener/pkg/types"
)

// Fixed texts returned without consulting the model.
const (
	NoCorrections   = "No corrections needed. Your text looks good!"
	NothingToBatch  = "No corrections to explain."
	Unavailable     = "Explanation unavailable."
	defaultTemp     = 0.2
	defaultMaxToken = 256
)

const systemPrompt = `You are a helpful and precise grammar coach.
Describe, briefly and objectively, what changed between the original and the corrected version of the text.
Do NOT judge whether a change is good or bad. Only describe the difference.

Work through it like this:
1. Compare the original and corrected versions line by line.
2. Find every difference on each line.
3. Name exactly what changed (a word replacement, a verb tense change, a punctuation fix, ...).
4. Merge these into one concise message written for the end user.

Do not suggest further corrections. Do not restate the full sentence. Avoid vague comments.

Respond with ONLY a JSON object in this format:
{"message": "Changed X to Y because Z.", "delta": <confidence from 0 to 1>}`

// Pair is one original/corrected sentence pair for [Explainer.ExplainBatch].
type Pair struct {
	Original  string
	Corrected string
}

// Option configures an [Explainer].
type Option func(*Explainer)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(t float64) Option {
	return func(e *Explainer) { e.temperature = t }
}

// Explainer generates correction explanations. It is safe for concurrent use.
type Explainer struct {
	llm         llm.Provider
	temperature float64
}

// New returns an Explainer backed by provider.
func New(provider llm.Provider, opts ...Option) *Explainer {
	e := &Explainer{llm: provider, temperature: defaultTemp}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Explain describes the edits that turn original into corrected. With no
// changes it returns [NoCorrections] without calling the model.
func (e *Explainer) Explain(ctx context.Context, original, corrected string, changes []types.Change) string {
	if len(changes) == 0 {
		return NoCorrections
	}
	user := fmt.Sprintf("Original: %q\nCorrected: %q", original, corrected)
	return e.ask(ctx, user)
}

// ExplainBatch describes several sentence corrections in one model call.
// Each pair becomes one line of the prompt.
func (e *Explainer) ExplainBatch(ctx context.Context, pairs []Pair) string {
	if len(pairs) == 0 {
		return NothingToBatch
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Original: %q -> Corrected: %q", p.Original, p.Corrected)
	}
	return e.ask(ctx, b.String())
}

func (e *Explainer) ask(ctx context.Context, user string) string {
	log := observe.Logger(ctx)

	req := llm.UserPrompt(systemPrompt, user)
	req.Temperature = e.temperature
	req.MaxTokens = defaultMaxToken

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		log.Warn("explanation generation failed", "err", err)
		return Unavailable
	}
	if resp == nil {
		return Unavailable
	}
	return parseReply(resp.Content)
}

type reply struct {
	Message string  `json:"message"`
	Delta   float64 `json:"delta"`
}

// parseReply adopts the "message" field of a structured reply and falls back
// to the raw text trimmed.
func parseReply(content string) string {
	if span, ok := llm.ExtractJSON(content); ok {
		var r reply
		if err := json.Unmarshal([]byte(span), &r); err == nil && strings.TrimSpace(r.Message) != "" {
			return strings.TrimSpace(r.Message)
		}
	}
	raw := strings.TrimSpace(content)
	if raw == "" {
		return Unavailable
	}
	return raw
}
