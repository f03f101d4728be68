package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/scrivener/pkg/provider/corrector"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// CorrectorFactory builds a corrector. llmProvider is the configured LLM, or
// nil when none is configured; only LLM-backed correctors use it.
type CorrectorFactory func(entry ProviderEntry, llmProvider llm.Provider) (corrector.Corrector, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	correctors map[string]CorrectorFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		correctors: make(map[string]CorrectorFactory),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterCorrector registers a corrector factory under name.
func (r *Registry) RegisterCorrector(name string, factory CorrectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correctors[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateCorrector instantiates a corrector using the factory registered under entry.Name.
func (r *Registry) CreateCorrector(entry ProviderEntry, llmProvider llm.Provider) (corrector.Corrector, error) {
	r.mu.RLock()
	factory, ok := r.correctors[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: corrector/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, llmProvider)
}
