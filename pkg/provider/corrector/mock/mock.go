// Package mock provides a test double for the corrector.Corrector interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/scrivener/pkg/provider/corrector"
)

// Corrector is a mock corrector. With no fields set it echoes its input.
type Corrector struct {
	mu sync.Mutex

	// Responses maps an input to its corrected form.
	Responses map[string]string

	// Err, if non-nil, is returned from every call.
	Err error

	// CorrectFunc, if set, overrides Responses and Err.
	CorrectFunc func(ctx context.Context, text string) (string, error)

	// PingErr is returned by Ping.
	PingErr error

	// Inputs records every text passed to Correct.
	Inputs []string
}

// Correct records text and returns the configured response.
func (c *Corrector) Correct(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	c.Inputs = append(c.Inputs, text)
	fn, err := c.CorrectFunc, c.Err
	out, ok := c.Responses[text]
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return text, nil
	}
	return out, nil
}

// Ping returns PingErr.
func (c *Corrector) Ping(context.Context) error { return c.PingErr }

// Calls returns the number of Correct invocations.
func (c *Corrector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Inputs)
}

var (
	_ corrector.Corrector = (*Corrector)(nil)
	_ corrector.Pinger    = (*Corrector)(nil)
)
