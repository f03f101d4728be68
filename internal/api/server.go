// Package api serves the Scrivener HTTP and WebSocket surface.
//
// Routes live under /api/v1: inference, correct, diff, insights, analyses and
// the live-analysis WebSocket at ws. Errors are JSON objects of the form
// {"detail": "..."}.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/MrWong99/scrivener/internal/analysis"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/store"
	"github.com/MrWong99/scrivener/pkg/types"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// History lists recorded analyses. *store.Store satisfies it.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Entry, error)
	Get(ctx context.Context, id uuid.UUID) (store.Entry, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithHistory enables the /api/v1/analyses routes.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithMaxBodyBytes caps JSON request bodies and WebSocket frames.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithMetrics sets the metrics used for WebSocket gauges.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuth wraps every /api/v1 route in mw, typically
// [github.com/MrWong99/scrivener/internal/auth.Verifier.Middleware].
func WithAuth(mw func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.authMW = mw }
}

// WithOriginPatterns sets the host patterns accepted on WebSocket upgrades.
// An empty list only accepts same-origin requests.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// Server holds the API handlers. Create one with [New] and mount it with
// [Server.Register].
type Server struct {
	svc            *analysis.Service
	history        History
	metrics        *observe.Metrics
	maxBody        int64
	authMW         func(http.Handler) http.Handler
	originPatterns []string
}

// New returns a Server backed by svc.
func New(svc *analysis.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds the /api/v1 routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		var handler http.Handler = h
		if s.authMW != nil {
			handler = s.authMW(handler)
		}
		mux.Handle(pattern, handler)
	}

	handle("POST /api/v1/inference", s.handleInference)
	handle("POST /api/v1/correct", s.handleCorrect)
	handle("POST /api/v1/diff", s.handleDiff)
	handle("POST /api/v1/insights", s.handleInsights)
	handle("GET /api/v1/analyses", s.handleRecent)
	handle("GET /api/v1/analyses/{id}", s.handleGet)
	handle("GET /api/v1/ws", s.handleWS)
}

func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	var p types.Prompt
	if !s.decode(w, r, &p) {
		return
	}
	res, err := s.svc.Infer(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeDetail(w, http.StatusBadRequest, "text must not be empty")
		return
	}
	corrected, err := s.svc.Correct(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.CorrectionResponse{Corrected: corrected})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	var req types.DiffRequest
	if !s.decode(w, r, &req) {
		return
	}
	changes, err := s.svc.Diff(r.Context(), req.Original, req.Corrected)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.DiffResponse{Changes: changes})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var p types.Prompt
	if !s.decode(w, r, &p) {
		return
	}
	p.AnalysisType = types.AnalysisInsights
	res, err := s.svc.Infer(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

const (
	defaultRecentLimit = 20
)

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeDetail(w, http.StatusNotFound, "analysis history is not enabled")
		return
	}
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": entries})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeDetail(w, http.StatusNotFound, "analysis history is not enabled")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "id must be a UUID")
		return
	}
	e, err := s.history.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
