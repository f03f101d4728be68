// Package llmcorrect implements a corrector that asks a language model to
// fix grammar, spelling and punctuation.
//
// The model is told to return only the corrected text. Replies wrapped in
// markdown fences or in a JSON object with a "corrected" field are unwrapped.
// An empty reply is an error: treating it as "no corrections" would make the
// analysis report the whole text as deleted.
package llmcorrect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/scrivener/pkg/provider/corrector"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
)

const defaultTemperature = 0.1

const systemPrompt = `You are a careful copy editor.

Correct grammar, spelling and punctuation errors in the text the user sends.

Rules:
- Keep the author's wording, tone and sentence order wherever they are already correct.
- Do NOT add, remove or reorder sentences.
- Do NOT explain your changes.

Respond with ONLY the corrected text. If the text needs no corrections, return it unchanged.`

// ErrEmptyReply is returned when the model produces no text.
var ErrEmptyReply = errors.New("llm corrector: empty reply")

var _ corrector.Corrector = (*Corrector)(nil)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) { c.temperature = temp }
}

// WithSystemPrompt replaces the built-in instructions.
func WithSystemPrompt(p string) Option {
	return func(c *Corrector) { c.systemPrompt = p }
}

// Corrector uses an [llm.Provider] to correct text. It is safe for concurrent
// use.
type Corrector struct {
	llm          llm.Provider
	temperature  float64
	systemPrompt string
}

// New returns a Corrector backed by provider.
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:          provider,
		temperature:  defaultTemperature,
		systemPrompt: systemPrompt,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct implements corrector.Corrector.
func (c *Corrector) Correct(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	req := llm.UserPrompt(c.systemPrompt, text)
	req.Temperature = c.temperature

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm corrector: complete: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyReply
	}

	out := parseReply(resp.Content, text)
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}

// parseReply unwraps fences, a {"corrected": ...} object and surrounding
// quotes that the input did not have.
func parseReply(content, input string) string {
	s := llm.StripMarkdown(content)

	if strings.HasPrefix(s, "{") {
		var obj struct {
			Corrected     string `json:"corrected"`
			CorrectedText string `json:"corrected_text"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			if obj.Corrected != "" {
				s = obj.Corrected
			} else {
				s = obj.CorrectedText
			}
		}
	}

	in := strings.TrimSpace(input)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && !strings.HasPrefix(in, `"`) {
		s = s[1 : len(s)-1]
	}

	// The pipeline diffs the reply against the input, so keep the input's
	// outer whitespace.
	if s == "" {
		return ""
	}
	lead := input[:len(input)-len(strings.TrimLeft(input, " \t\r\n"))]
	trail := input[len(strings.TrimRight(input, " \t\r\n")):]
	return lead + strings.TrimSpace(s) + trail
}
