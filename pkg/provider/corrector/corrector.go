// Package corrector defines the text-correction collaborator: something that
// takes a piece of prose and returns a grammatically corrected version of it.
//
// The analysis pipeline treats a corrector as opaque. Whatever it returns is
// diffed against the input, so a corrector must return the full text, not a
// list of edits.
package corrector

import "context"

// Corrector returns a corrected rendition of text.
//
// Implementations must be safe for concurrent use. An empty result for a
// non-empty input is reported as an error rather than returned.
type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// Pinger is implemented by correctors that can report whether their backend
// is reachable. Readiness checks use it when available.
type Pinger interface {
	Ping(ctx context.Context) error
}
