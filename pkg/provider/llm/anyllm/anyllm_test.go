package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/scrivener/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	tests := []struct {
		role    string
		content string
	}{
		{llm.RoleSystem, "You are a grammar coach."},
		{llm.RoleUser, "Original: \"eror\""},
		{llm.RoleAssistant, `{"message":"Changed eror to error."}`},
	}
	for _, tt := range tests {
		got := convertMessage(llm.Message{Role: tt.role, Content: tt.content})
		if got.Role != tt.role {
			t.Errorf("role = %q, want %q", got.Role, tt.role)
		}
		if got.ContentString() != tt.content {
			t.Errorf("content = %q, want %q", got.ContentString(), tt.content)
		}
	}
}

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "llama3.2:latest"}
	req := llm.UserPrompt("system text", "user text")
	req.Temperature = 0.1
	req.TopP = 0.9
	req.MaxTokens = 256

	params := p.buildParams(req)
	if params.Model != "llama3.2:latest" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.1 {
		t.Errorf("temperature = %v, want 0.1", params.Temperature)
	}
	if params.TopP == nil || *params.TopP != 0.9 {
		t.Errorf("top_p = %v, want 0.9", params.TopP)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("max tokens = %v, want 256", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.UserPrompt("", "hi"))
	if len(params.Messages) != 1 {
		t.Errorf("got %d messages, want 1 (no system prompt)", len(params.Messages))
	}
	if params.Temperature != nil || params.TopP != nil || params.MaxTokens != nil {
		t.Error("zero sampling values should leave provider defaults")
	}
}

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", "", anyllmlib.WithAPIKey("sk-test")); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNew_OllamaDefaultModel(t *testing.T) {
	p, err := NewOllama("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != DefaultOllamaModel {
		t.Errorf("model = %q, want %q", p.Model(), DefaultOllamaModel)
	}
}

func TestNew_UnsupportedProvider(t *testing.T) {
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "gpt-4o-mini" {
		t.Errorf("model = %q", p.model)
	}
}

func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "gpt-4o"); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
