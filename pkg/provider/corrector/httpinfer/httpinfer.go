// Package httpinfer provides a corrector backed by an external model server
// that exposes a seq2seq grammar-correction model over HTTP.
//
// The server contract is small:
//
//	POST {baseURL}/infer   {"text": "..."}  ->  {"corrected": "..."}
//	GET  {baseURL}/health                   ->  2xx when ready
//
// Example usage:
//
//	c, err := httpinfer.New("http://localhost:8501")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fixed, err := c.Correct(ctx, "She go to school yesterday.")
package httpinfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/scrivener/pkg/provider/corrector"
)

// DefaultBaseURL is where the inference sidecar listens by default.
const DefaultBaseURL = "http://localhost:8501"

// ErrEmptyCorrection is returned when the server answers with no text for a
// non-empty input.
var ErrEmptyCorrection = errors.New("httpinfer: empty correction")

var (
	_ corrector.Corrector = (*Corrector)(nil)
	_ corrector.Pinger    = (*Corrector)(nil)
)

// Corrector calls the inference server. It is safe for concurrent use.
type Corrector struct {
	baseURL    string
	inferPath  string
	healthPath string
	httpClient *http.Client
}

type config struct {
	timeout    time.Duration
	inferPath  string
	healthPath string
	client     *http.Client
}

// Option is a functional option for Corrector.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithInferPath overrides the inference endpoint path. Default: "/infer".
func WithInferPath(p string) Option {
	return func(c *config) { c.inferPath = p }
}

// WithHealthPath overrides the health endpoint path. Default: "/health".
func WithHealthPath(p string) Option {
	return func(c *config) { c.healthPath = p }
}

// WithHTTPClient replaces the underlying HTTP client. WithTimeout is ignored
// when a client is supplied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.client = hc }
}

// New constructs a Corrector. An empty baseURL selects [DefaultBaseURL].
func New(baseURL string, opts ...Option) (*Corrector, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("httpinfer: base URL %q must start with http:// or https://", baseURL)
	}

	cfg := &config{inferPath: "/infer", healthPath: "/health"}
	for _, o := range opts {
		o(cfg)
	}

	hc := cfg.client
	if hc == nil {
		hc = &http.Client{}
		if cfg.timeout > 0 {
			hc.Timeout = cfg.timeout
		}
	}

	return &Corrector{
		baseURL:    baseURL,
		inferPath:  cfg.inferPath,
		healthPath: cfg.healthPath,
		httpClient: hc,
	}, nil
}

type inferRequest struct {
	Text string `json:"text"`
}

type inferResponse struct {
	Corrected string `json:"corrected"`
}

// Correct implements corrector.Corrector.
func (c *Corrector) Correct(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(inferRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("httpinfer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.inferPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("httpinfer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpinfer: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("httpinfer: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("httpinfer: decode response: %w", err)
	}
	if out.Corrected == "" && text != "" {
		return "", ErrEmptyCorrection
	}
	return out.Corrected, nil
}

// Ping implements corrector.Pinger.
func (c *Corrector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return fmt.Errorf("httpinfer: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpinfer: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("httpinfer: ping: status %d", resp.StatusCode)
	}
	return nil
}
