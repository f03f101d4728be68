// Package llm defines the Provider interface for Large Language Model backends.
//
// Scrivener uses an LLM for three jobs: explaining corrections, generating
// content insights, and (optionally) producing the corrected text itself. All
// three only need a single non-streaming completion, so the interface is a
// single method.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled.
package llm

import "context"

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
