// Package types defines the wire types shared across Scrivener packages.
//
// These types form the JSON contract between the analysis core, the HTTP and
// WebSocket transports, the MCP server and the audit store. Field names are
// part of the public API and must not change.
package types

import "fmt"

// Change is one edit site in the original text's coordinate space.
//
// StartIndex and EndIndex are code-point offsets into the original text with
// StartIndex <= EndIndex. Resolution holds the trimmed replacement text, or ""
// for a pure deletion.
type Change struct {
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Resolution string `json:"resolution"`
}

// SentenceAnalysis is the per-sentence part of a grammar analysis.
type SentenceAnalysis struct {
	// SentenceIndex is the position in the longer of the two sentence
	// sequences, starting at 0.
	SentenceIndex int `json:"sentenceIndex"`

	Original  string `json:"original"`
	Corrected string `json:"corrected"`

	// Changes is never nil so that it serialises as [] rather than null.
	Changes []Change `json:"changes"`

	Explanation *string `json:"explanation"`
}

// GrammarAnalysisResponse is the full result of one grammar analysis.
type GrammarAnalysisResponse struct {
	Original       string             `json:"original"`
	Corrected      string             `json:"corrected"`
	ParagraphDiffs []Change           `json:"paragraphDiffs"`
	Sentences      []SentenceAnalysis `json:"sentences"`
}

// ChangeCount returns the number of paragraph-level changes.
func (r *GrammarAnalysisResponse) ChangeCount() int {
	if r == nil {
		return 0
	}
	return len(r.ParagraphDiffs)
}

// AnalysisType selects which analyses an inference request runs.
type AnalysisType string

const (
	AnalysisGrammar  AnalysisType = "grammar"
	AnalysisInsights AnalysisType = "insights"
	AnalysisBoth     AnalysisType = "both"
)

// IsValid reports whether t is a recognised analysis type.
func (t AnalysisType) IsValid() bool {
	switch t {
	case AnalysisGrammar, AnalysisInsights, AnalysisBoth:
		return true
	}
	return false
}

// Prompt is the body of an inference request.
type Prompt struct {
	Text string `json:"text"`

	// FullContext is the broader document used for insights when present.
	FullContext string `json:"full_context,omitempty"`

	// AnalysisType defaults to [AnalysisGrammar] when empty.
	AnalysisType AnalysisType `json:"analysis_type,omitempty"`

	IncludeExplanations bool `json:"include_explanations,omitempty"`
}

// Normalize fills defaults and validates p.
func (p *Prompt) Normalize() error {
	if p.AnalysisType == "" {
		p.AnalysisType = AnalysisGrammar
	}
	if !p.AnalysisType.IsValid() {
		return fmt.Errorf("analysis_type %q must be one of grammar, insights, both", p.AnalysisType)
	}
	if p.Text == "" {
		return fmt.Errorf("text must not be empty")
	}
	return nil
}

// Insight is one content suggestion produced by the insights generator.
type Insight struct {
	ID          int      `json:"id"`
	Category    string   `json:"category"`
	Suggestion  string   `json:"suggestion"`
	Description string   `json:"description"`
	References  []string `json:"references"`
}

// InsightsResponse carries the insights generated for a text.
type InsightsResponse struct {
	Original string    `json:"original"`
	Insights []Insight `json:"insights"`
}

// CombinedResponse is returned for [AnalysisBoth]. Insights is nil and
// InsightsError set when the insights half could not be produced.
type CombinedResponse struct {
	Grammar       *GrammarAnalysisResponse `json:"grammar"`
	Insights      *InsightsResponse        `json:"insights"`
	InsightsError string                   `json:"insightsError,omitempty"`
}

// CorrectionResponse is the raw output of the correction collaborator.
type CorrectionResponse struct {
	Corrected string `json:"corrected"`
}

// DiffRequest asks for the change list between two strings.
type DiffRequest struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// DiffResponse is the change list for a [DiffRequest].
type DiffResponse struct {
	Changes []Change `json:"changes"`
}
