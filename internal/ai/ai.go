// Package ai defines the external AI collaborator interfaces — compressor,
// summarizer, embedder, reranker — treated as pure functions with defined
// failure contracts. Implementations live outside this module; engramd only
// depends on these signatures plus FallbackCompressor, the deterministic
// substitute the queue processor falls back to on compressor failure.
package ai

import (
	"context"
	"strings"
)

// ObservationDraft is what Compress produces for one tool execution.
type ObservationDraft struct {
	Type           string
	Title          string
	Subtitle       string
	Facts          []string
	Narrative      string
	Concepts       []string
	FilesRead      []string
	FilesModified  []string
	Importance     int
	TokenCount     int
	DiscoveryTokens int
}

// ObservationForSummary is the minimal projection Summarize reads; it is
// deliberately store-agnostic so this package has no dependency on
// internal/store.
type ObservationForSummary struct {
	Type          string
	Title         string
	Narrative     string
	Concepts      []string
	FilesModified []string
	Importance    int
}

// SessionSummaryDraft is what Summarize produces for one session.
type SessionSummaryDraft struct {
	Request       string
	Investigated  string
	Learned       string
	Completed     string
	NextSteps     string
	Summary       string
	KeyDecisions  []string
	FilesModified []string
	Concepts      []string
	TokenCount    int
}

// RerankCandidate is one item the reranker is asked to reorder.
type RerankCandidate struct {
	ID         int64
	Title      string
	Narrative  string
	CreatedAt  string
	Importance int
}

// Compressor turns raw tool output into a structured observation draft.
// On failure the queue processor substitutes FallbackCompressor's output
// rather than failing the pending entry outright (spec §4.4 step 2, §7).
type Compressor interface {
	Compress(ctx context.Context, toolOutput, toolName string) (*ObservationDraft, error)
}

// Summarizer produces the one-per-session narrative summary (spec §3,
// "Session Summary").
type Summarizer interface {
	Summarize(ctx context.Context, observations []ObservationForSummary) (*SessionSummaryDraft, error)
}

// Embedder computes a fixed-dimension embedding for arbitrary text. A nil
// vector with a nil error means "no embedding available for this item"
// (spec §6); a non-nil error means the call failed outright. Both are
// handled identically by callers: skip the embedding, continue FTS-only.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Reranker reorders search results. It returns the indices of candidates
// in their new order; missing indices are appended by the caller in their
// original order (spec §4.6).
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate, limit int) ([]int, error)
}

// FallbackCompressor is the deterministic compressor substitute used when
// the real compressor fails or is disabled. Its title is derived from the
// tool name and its narrative is a truncation of the raw output — exactly
// the contract spec §4.4 describes for the fallback path.
type FallbackCompressor struct{}

func (FallbackCompressor) Compress(_ context.Context, toolOutput, toolName string) (*ObservationDraft, error) {
	name := strings.TrimSpace(toolName)
	if name == "" {
		name = "tool"
	}
	narrative := strings.TrimSpace(toolOutput)
	const maxNarrative = 500
	if len(narrative) > maxNarrative {
		narrative = narrative[:maxNarrative] + "... [truncated]"
	}
	return &ObservationDraft{
		Type:       "change",
		Title:      "Ran " + name,
		Narrative:  narrative,
		Importance: 3,
		TokenCount: len(strings.Fields(narrative)),
	}, nil
}

// NoopEmbedder reports no embedding support at all — the zero-value
// embedding provider when ENGRAMD_EMBEDDING_DIM is unset.
type NoopEmbedder struct{}

func (NoopEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (NoopEmbedder) Dimensions() int                                  { return 0 }
