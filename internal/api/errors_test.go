package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/MrWong99/scrivener/internal/analysis"
	"github.com/MrWong99/scrivener/internal/diff"
	"github.com/MrWong99/scrivener/internal/insights"
	"github.com/MrWong99/scrivener/internal/resilience"
	"github.com/MrWong99/scrivener/internal/store"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	short := &insights.InsufficientContentError{MinSentences: 3, MinWords: 50, Sentences: 1, Words: 4}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"insufficient content", fmt.Errorf("wrapped: %w", short), http.StatusUnprocessableEntity, ""},
		{"invalid prompt", fmt.Errorf("%w: text must not be empty", analysis.ErrInvalidPrompt), http.StatusBadRequest, ""},
		{"insights disabled", analysis.ErrInsightsDisabled, http.StatusNotImplemented, ""},
		{"not found", store.ErrNotFound, http.StatusNotFound, ""},
		{"deadline", fmt.Errorf("%w: %w", analysis.ErrCorrection, context.DeadlineExceeded), http.StatusGatewayTimeout, ""},
		{"correction", fmt.Errorf("%w: boom", analysis.ErrCorrection), http.StatusBadGateway, ""},
		{"all failed", fmt.Errorf("%w: %w", resilience.ErrAllFailed, resilience.ErrCircuitOpen), http.StatusBadGateway, ""},
		{"unparseable", insights.ErrUnparseable, http.StatusBadGateway, ""},
		{"malformed script", fmt.Errorf("%w: bad", diff.ErrMalformedScript), http.StatusInternalServerError, "diff: malformed edit script: bad"},
		{"unknown", errors.New("secret internals"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, body := statusFor(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			want := tt.wantDetail
			if want == "" {
				want = tt.err.Error()
			}
			if body.Detail != want {
				t.Errorf("detail = %q, want %q", body.Detail, want)
			}
		})
	}

	_, body := statusFor(short)
	if body.MinSentences != 3 || body.MinWords != 50 {
		t.Errorf("thresholds = %d/%d, want 3/50", body.MinSentences, body.MinWords)
	}
}
