package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/scrivener/pkg/provider/corrector"
)

// CorrectorFallback implements [corrector.Corrector] with failover across
// several correction backends.
type CorrectorFallback struct {
	group *FallbackGroup[corrector.Corrector]
}

var (
	_ corrector.Corrector = (*CorrectorFallback)(nil)
	_ corrector.Pinger    = (*CorrectorFallback)(nil)
)

// NewCorrectorFallback creates a [CorrectorFallback] with primary as the
// preferred backend. cfg.Kind defaults to "corrector".
func NewCorrectorFallback(primary corrector.Corrector, primaryName string, cfg FallbackConfig) *CorrectorFallback {
	if cfg.Kind == "" {
		cfg.Kind = "corrector"
	}
	return &CorrectorFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend.
func (f *CorrectorFallback) AddFallback(name string, c corrector.Corrector) {
	f.group.AddFallback(name, c)
}

// Correct sends text to the first healthy backend.
func (f *CorrectorFallback) Correct(ctx context.Context, text string) (string, error) {
	return Call(ctx, f.group, func(ctx context.Context, c corrector.Corrector) (string, error) {
		return c.Correct(ctx, text)
	})
}

// Ping succeeds when at least one backend is reachable. Backends that do not
// implement [corrector.Pinger] count as reachable.
func (f *CorrectorFallback) Ping(ctx context.Context) error {
	var errs []error
	for _, e := range f.group.entries {
		p, ok := e.value.(corrector.Pinger)
		if !ok {
			return nil
		}
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
