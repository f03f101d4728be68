package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/scrivener/internal/app"
	"github.com/MrWong99/scrivener/internal/auth"
	"github.com/MrWong99/scrivener/internal/config"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/sentence"
	"github.com/MrWong99/scrivener/internal/store"
	cmock "github.com/MrWong99/scrivener/pkg/provider/corrector/mock"
)

// fakeStore is an in-memory audit store.
type fakeStore struct {
	mu      sync.Mutex
	entries []store.Entry
	pingErr error
}

func (s *fakeStore) Record(_ context.Context, e store.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeStore) Recent(_ context.Context, limit int) ([]store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return store.Entry{}, store.ErrNotFound
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// testConfig returns a defaulted config using the rule-based splitter.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Analysis.Splitter = sentence.KindSimple
	cfg.ApplyDefaults()
	return cfg
}

func testProviders() *app.Providers {
	return &app.Providers{
		Corrector: &cmock.Corrector{Responses: map[string]string{"an eror": "an error"}},
	}
}

func serve(t *testing.T, a *app.App, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresCorrector(t *testing.T) {
	t.Parallel()

	if _, err := app.New(context.Background(), testConfig(), &app.Providers{}); err == nil {
		t.Fatal("New() with no corrector: want error, got nil")
	}
	if _, err := app.New(context.Background(), testConfig(), nil); err == nil {
		t.Fatal("New() with nil providers: want error, got nil")
	}
}

func TestNew_ServesAnalysisAndHistory(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	a, err := app.New(context.Background(), testConfig(), testProviders(), app.WithStore(st))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	rec := serve(t, a, http.MethodPost, "/api/v1/inference", `{"text":"an eror"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("inference status = %d, body %s", rec.Code, rec.Body)
	}
	var res struct {
		ParagraphDiffs []struct {
			Resolution string `json:"resolution"`
		} `json:"paragraphDiffs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.ParagraphDiffs) != 1 || res.ParagraphDiffs[0].Resolution != "error" {
		t.Errorf("paragraphDiffs = %+v", res.ParagraphDiffs)
	}
	if got := st.len(); got != 1 {
		t.Fatalf("recorded entries = %d, want 1", got)
	}

	rec = serve(t, a, http.MethodGet, "/api/v1/analyses", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"an eror"`) {
		t.Errorf("history body = %s", rec.Body)
	}
}

func TestNew_InsightsDisabledWithoutLLM(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), testProviders())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	rec := serve(t, a, http.MethodPost, "/api/v1/insights", `{"text":"Some text."}`, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("insights status = %d, want 501", rec.Code)
	}

	rec = serve(t, a, http.MethodGet, "/api/v1/analyses", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("history without store status = %d, want 404", rec.Code)
	}
}

func TestNew_HealthEndpoints(t *testing.T) {
	t.Parallel()

	st := &fakeStore{pingErr: errors.New("db down")}
	a, err := app.New(context.Background(), testConfig(), testProviders(), app.WithStore(st))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	rec := serve(t, a, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"scrivener"`) {
		t.Errorf("/health body = %s", rec.Body)
	}

	rec = serve(t, a, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", rec.Code)
	}
}

func TestNew_MetricsHandler(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "scrivener_up 1\n")
	})
	a, err := app.New(context.Background(), testConfig(), testProviders(), app.WithMetricsHandler(metrics))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	rec := serve(t, a, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "scrivener_up") {
		t.Errorf("/metrics = %d %s", rec.Code, rec.Body)
	}
}

func TestNew_AuthEnabled(t *testing.T) {
	t.Parallel()

	const secret = "test-secret"
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, Secret: secret, RequiredRole: "editor"}

	a, err := app.New(context.Background(), cfg, testProviders())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	rec := serve(t, a, http.MethodPost, "/api/v1/inference", `{"text":"an eror"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	// Health stays public.
	if rec := serve(t, a, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "editor",
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec = serve(t, a, http.MethodPost, "/api/v1/inference", `{"text":"an eror"}`,
		http.Header{"Authorization": {"Bearer " + signed}})
	if rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestNew_AuthWithoutSecretFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	if _, err := app.New(context.Background(), cfg, testProviders()); err == nil {
		t.Fatal("New() with auth and no secret: want error, got nil")
	}
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), testProviders())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	// Idempotent.
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}

// TestNew_DissimilarPairLoggedOnceAndCounted swaps the default logger, so it
// does not run in parallel.
func TestNew_DissimilarPairLoggedOnceAndCounted(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	cfg := testConfig()
	// Any edit at all counts as dissimilar at this threshold.
	threshold := 0.999
	cfg.Analysis.AlignmentWarnThreshold = &threshold

	a, err := app.New(context.Background(), cfg, testProviders(), app.WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	rec := serve(t, a, http.MethodPost, "/api/v1/inference", `{"text":"an eror"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("inference status = %d, body %s", rec.Code, rec.Body)
	}

	if got := strings.Count(buf.String(), "aligned sentences look unrelated"); got != 1 {
		t.Errorf("dissimilar warnings = %d, want 1; log:\n%s", got, buf.String())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "scrivener.alignment.dissimilar_pairs" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("dissimilar_pairs data = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 1 {
		t.Errorf("dissimilar_pairs = %d, want 1", total)
	}
}
