// Package mcp exposes Scrivener's analysis primitives as Model Context
// Protocol tools over the streamable HTTP transport.
//
// Tools:
//   - "analyze_grammar" corrects a text (or takes a supplied correction) and
//     returns the full per-sentence analysis.
//   - "diff_text" returns the change list between two strings.
//   - "split_sentences" returns the sentences of a text.
//   - "generate_insights" is only registered when insights are enabled.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/scrivener/internal/analysis"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/pkg/types"
)

// Implementation identifies the server to MCP clients.
const (
	ImplementationName = "scrivener"
	DefaultVersion     = "dev"
)

// Server wraps an MCP server whose tools call an [analysis.Service].
type Server struct {
	mcp *mcpsdk.Server
	svc *analysis.Service
}

// Option configures a [Server].
type Option func(*config)

type config struct {
	version string
}

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(c *config) {
		if v != "" {
			c.version = v
		}
	}
}

// NewServer builds the MCP server and registers its tools.
func NewServer(svc *analysis.Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("mcp: analysis service is required")
	}
	cfg := config{version: DefaultVersion}
	for _, o := range opts {
		o(&cfg)
	}

	s := &Server{
		mcp: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    ImplementationName,
			Version: cfg.version,
		}, nil),
		svc: svc,
	}
	s.registerTools()
	return s, nil
}

// SDK returns the underlying SDK server, e.g. to connect it to an
// in-memory transport.
func (s *Server) SDK() *mcpsdk.Server { return s.mcp }

// Handler returns the streamable HTTP handler serving this server.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcp
	}, nil)
}

// ── tool arguments ───────────────────────────────────────────────────────────

type analyzeInput struct {
	Text                string  `json:"text" jsonschema:"The text to analyze"`
	Corrected           *string `json:"corrected,omitempty" jsonschema:"Optional corrected text, possibly empty. When omitted the configured corrector produces it"`
	IncludeExplanations bool    `json:"include_explanations,omitempty" jsonschema:"Ask the language model to explain each corrected sentence"`
}

type diffInput struct {
	Original  string `json:"original" jsonschema:"The original text"`
	Corrected string `json:"corrected" jsonschema:"The corrected text"`
}

type splitInput struct {
	Text string `json:"text" jsonschema:"The text to split into sentences"`
}

type splitOutput struct {
	Sentences []string `json:"sentences" jsonschema:"Sentences in order of appearance"`
}

type insightsInput struct {
	Text        string `json:"text" jsonschema:"The text to generate insights for"`
	FullContext string `json:"full_context,omitempty" jsonschema:"Optional surrounding document analyzed instead of text"`
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "analyze_grammar",
		Description: "Correct a text and report every change per paragraph and per sentence with character offsets",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in analyzeInput) (*mcpsdk.CallToolResult, types.GrammarAnalysisResponse, error) {
		var resp *types.GrammarAnalysisResponse
		err := s.instrument(ctx, "analyze_grammar", func(ctx context.Context) error {
			if in.Text == "" {
				return fmt.Errorf("text must not be empty")
			}
			var err error
			if in.Corrected != nil {
				resp, err = s.svc.Assembler().Analyze(ctx, in.Text, *in.Corrected, in.IncludeExplanations)
			} else {
				resp, err = s.svc.Grammar(ctx, in.Text, in.IncludeExplanations)
			}
			return err
		})
		if err != nil {
			return nil, types.GrammarAnalysisResponse{}, err
		}
		return textResult(resp), *resp, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "diff_text",
		Description: "Return the changes that turn an original text into a corrected one, as code-point offsets into the original",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in diffInput) (*mcpsdk.CallToolResult, types.DiffResponse, error) {
		var out types.DiffResponse
		err := s.instrument(ctx, "diff_text", func(ctx context.Context) error {
			changes, err := s.svc.Diff(ctx, in.Original, in.Corrected)
			out.Changes = changes
			return err
		})
		if err != nil {
			return nil, types.DiffResponse{}, err
		}
		return textResult(out), out, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "split_sentences",
		Description: "Split a text into sentences the same way grammar analysis does",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in splitInput) (*mcpsdk.CallToolResult, splitOutput, error) {
		out := splitOutput{Sentences: s.svc.Assembler().Splitter().Split(in.Text)}
		if out.Sentences == nil {
			out.Sentences = []string{}
		}
		return textResult(out), out, nil
	})

	if !s.svc.InsightsEnabled() {
		return
	}
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "generate_insights",
		Description: "Suggest evidence, examples and structure that would strengthen a text",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in insightsInput) (*mcpsdk.CallToolResult, types.InsightsResponse, error) {
		var resp *types.InsightsResponse
		err := s.instrument(ctx, "generate_insights", func(ctx context.Context) error {
			var err error
			resp, err = s.svc.Insights(ctx, in.Text, in.FullContext)
			return err
		})
		if err != nil {
			return nil, types.InsightsResponse{}, err
		}
		return textResult(resp), *resp, nil
	})
}

// instrument runs fn inside a span and logs its outcome.
func (s *Server) instrument(ctx context.Context, tool string, fn func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "mcp.tool."+tool)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	log := observe.Logger(ctx).With("tool", tool, "duration", time.Since(start))
	if err != nil {
		span.RecordError(err)
		log.Warn("mcp tool failed", "err", err)
		return err
	}
	log.Debug("mcp tool completed")
	return nil
}

// textResult renders v as the JSON text content of a tool result.
func textResult(v any) *mcpsdk.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(fmt.Sprintf("%v", v))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}},
	}
}
