package llmcorrect_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/scrivener/pkg/provider/corrector/llmcorrect"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
	"github.com/MrWong99/scrivener/pkg/provider/llm/mock"
)

func TestCorrector_SendsTextAndTemperature(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "She went to school yesterday."},
	}
	c := llmcorrect.New(provider, llmcorrect.WithTemperature(0.3))

	got, err := c.Correct(context.Background(), "She go to school yesterday.")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got != "She went to school yesterday." {
		t.Errorf("Correct = %q", got)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", req.Temperature)
	}
	if req.SystemPrompt == "" {
		t.Error("system prompt is empty")
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "She go to school") {
		t.Errorf("user message missing input text: %+v", req.Messages)
	}
}

func TestCorrector_ReplyShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		reply string
		want  string
	}{
		{"plain", "I has a cat.", "I have a cat.", "I have a cat."},
		{"fenced", "I has a cat.", "```\nI have a cat.\n```", "I have a cat."},
		{"json object", "I has a cat.", `{"corrected": "I have a cat."}`, "I have a cat."},
		{"json corrected_text", "I has a cat.", `{"corrected_text": "I have a cat."}`, "I have a cat."},
		{"quoted", "I has a cat.", `"I have a cat."`, "I have a cat."},
		{"quoted input keeps quotes", `"Hi," he say.`, `"Hi," he said.`, `"Hi," he said.`},
		{"outer whitespace preserved", "  I has a cat.\n", "I have a cat.", "  I have a cat.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: tt.reply}}
			got, err := llmcorrect.New(provider).Correct(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Correct: %v", err)
			}
			if got != tt.want {
				t.Errorf("Correct = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCorrector_EmptyReplyIsError(t *testing.T) {
	t.Parallel()

	for _, reply := range []string{"", "   ", "```\n```"} {
		provider := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: reply}}
		_, err := llmcorrect.New(provider).Correct(context.Background(), "Some text.")
		if !errors.Is(err, llmcorrect.ErrEmptyReply) {
			t.Errorf("reply %q: err = %v, want ErrEmptyReply", reply, err)
		}
	}
}

func TestCorrector_ProviderError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("rate limited")
	provider := &mock.Provider{CompleteErr: sentinel}
	_, err := llmcorrect.New(provider).Correct(context.Background(), "Some text.")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
}

func TestCorrector_BlankInputSkipsLLM(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{}
	got, err := llmcorrect.New(provider).Correct(context.Background(), "  ")
	if err != nil || got != "  " {
		t.Fatalf("Correct = (%q, %v), want (\"  \", nil)", got, err)
	}
	if n := len(provider.Calls()); n != 0 {
		t.Errorf("expected no LLM calls, got %d", n)
	}
}
