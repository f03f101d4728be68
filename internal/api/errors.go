package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrWong99/scrivener/internal/analysis"
	"github.com/MrWong99/scrivener/internal/diff"
	"github.com/MrWong99/scrivener/internal/insights"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/resilience"
	"github.com/MrWong99/scrivener/internal/store"
)

// errorBody is the JSON shape of every error response. The threshold fields
// are only set for insufficient-content errors.
type errorBody struct {
	Detail       string `json:"detail"`
	MinSentences int    `json:"min_sentences,omitempty"`
	MinWords     int    `json:"min_words,omitempty"`
}

// statusFor maps an error to its HTTP status and response body.
func statusFor(err error) (int, errorBody) {
	body := errorBody{Detail: err.Error()}

	var short *insights.InsufficientContentError
	switch {
	case errors.As(err, &short):
		body.MinSentences = short.MinSentences
		body.MinWords = short.MinWords
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, analysis.ErrInvalidPrompt):
		return http.StatusBadRequest, body
	case errors.Is(err, analysis.ErrInsightsDisabled):
		return http.StatusNotImplemented, body
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, body
	case errors.Is(err, analysis.ErrCorrection),
		errors.Is(err, insights.ErrCompletion),
		errors.Is(err, insights.ErrUnparseable),
		errors.Is(err, resilience.ErrAllFailed),
		errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusBadGateway, body
	case errors.Is(err, diff.ErrMalformedScript):
		return http.StatusInternalServerError, body
	default:
		return http.StatusInternalServerError, errorBody{Detail: "internal server error"}
	}
}

// writeError logs err and writes the mapped status and body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "err", err)
	} else {
		log.Info("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body of at most s.maxBody bytes into v. On failure it
// writes the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		writeDetail(w, http.StatusBadRequest, "request body must not be empty")
	default:
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return false
}
