package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcppkg "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/search"
	"github.com/jalfaro/engramd/internal/store"
)

var errNotFound = errors.New("not found")

type fakeStore struct {
	observations map[int64]*store.Observation
	projects     map[int64]string
}

func (f *fakeStore) GetObservation(id int64) (*store.Observation, error) {
	o, ok := f.observations[id]
	if !ok {
		return nil, errNotFound
	}
	return o, nil
}

func (f *fakeStore) Timeline(observationID int64, before, after int) (*store.TimelineResult, error) {
	return &store.TimelineResult{}, nil
}

func (f *fakeStore) AddObservation(p store.AddObservationParams) (int64, error) {
	return 99, nil
}

func (f *fakeStore) Export(project string) (*store.ExportData, error) {
	return &store.ExportData{}, nil
}

func (f *fakeStore) Import(data *store.ExportData) (*store.ImportResult, error) {
	return &store.ImportResult{}, nil
}

func (f *fakeStore) UpdateObservation(id int64, p store.UpdateObservationParams) (*store.Observation, error) {
	return f.observations[id], nil
}

func (f *fakeStore) DeleteObservation(id int64) error {
	delete(f.observations, id)
	return nil
}

func (f *fakeStore) ProjectForObservation(id int64) (string, error) {
	if p, ok := f.projects[id]; ok {
		return p, nil
	}
	return "", errNotFound
}

type fakeOrchestrator struct {
	results []search.Result
}

func (f *fakeOrchestrator) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	return f.results, nil
}

func newTestServer() *Server {
	fs := &fakeStore{
		observations: map[int64]*store.Observation{
			1: {ID: 1, Title: "existing"},
		},
		projects: map[int64]string{1: "/p"},
	}
	orch := &fakeOrchestrator{results: []search.Result{
		{Observation: store.ObservationIndexEntry{ID: 1, Title: "existing"}, Score: 1.0, Source: "fts"},
	}}
	return NewServer(fs, orch, "/p", "test-version", zap.NewNop())
}

func callResultText(t *testing.T, res *mcppkg.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected non-empty tool result")
	}
	text, ok := mcppkg.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("expected text content")
	}
	return text.Text
}

func callTool(args map[string]any) mcppkg.CallToolRequest {
	return mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: args}}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := newTestServer()
	if s == nil || s.MCPServer() == nil {
		t.Fatalf("expected a registered MCP server instance")
	}
}

// TestHandleSearchReturnsResults covers scenario S6 (spec §8): a tools/call
// against mem-search returns the orchestrator's results as a JSON envelope.
func TestHandleSearchReturnsResults(t *testing.T) {
	s := newTestServer()
	h := handleSearch(s)

	res, err := h(context.Background(), callTool(map[string]any{"query": "widget"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", callResultText(t, res))
	}

	var parsed struct {
		Results []search.Result `json:"results"`
	}
	if err := json.Unmarshal([]byte(callResultText(t, res)), &parsed); err != nil {
		t.Fatalf("decode search results: %v", err)
	}
	if len(parsed.Results) != 1 || parsed.Results[0].Observation.ID != 1 {
		t.Fatalf("expected the fake orchestrator's single result to round-trip, got %+v", parsed.Results)
	}
}

// TestAliasHandlerMatchesCanonical covers the memory.find alias (spec
// §4.8): aliasOf maps it to mem-search, and the mem-search handler that
// registerTools also binds to the alias returns observation 1.
func TestAliasHandlerMatchesCanonical(t *testing.T) {
	if canonical := aliasOf["memory.find"]; canonical != "mem-search" {
		t.Fatalf("expected memory.find to alias mem-search, got %q", canonical)
	}

	s := newTestServer()
	h := handleSearch(s)
	res, err := h(context.Background(), callTool(map[string]any{"query": "widget"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), `"id":1`) {
		t.Fatalf("expected result to reference observation 1, got %q", callResultText(t, res))
	}
}

func TestHandleRecallNotFound(t *testing.T) {
	s := newTestServer()
	h := handleRecall(s)

	res, err := h(context.Background(), callTool(map[string]any{"id": 404}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing observation")
	}
}

func TestHandleRecallRequiresID(t *testing.T) {
	s := newTestServer()
	h := handleRecall(s)

	res, err := h(context.Background(), callTool(map[string]any{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error when id is missing")
	}
}

func TestHandleSaveRequiresFields(t *testing.T) {
	s := newTestServer()
	h := handleSave(s)

	res, err := h(context.Background(), callTool(map[string]any{"sessionId": "s1"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error when title/narrative/type are missing")
	}
}

func TestHandleSaveRejectsUnknownType(t *testing.T) {
	s := newTestServer()
	h := handleSave(s)

	res, err := h(context.Background(), callTool(map[string]any{
		"sessionId": "s1", "type": "bogus", "title": "t", "narrative": "n",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for an invalid observation type")
	}
}

// TestHandleUpdateProjectIsolation covers spec §8 invariant 10: mem-update
// is rejected across a project boundary rather than silently applied.
func TestHandleUpdateProjectIsolation(t *testing.T) {
	fs := &fakeStore{
		observations: map[int64]*store.Observation{1: {ID: 1, Title: "existing"}},
		projects:     map[int64]string{1: "/other-project"},
	}
	s := NewServer(fs, &fakeOrchestrator{}, "/p", "test-version", zap.NewNop())
	h := handleUpdate(s)

	res, err := h(context.Background(), callTool(map[string]any{"id": 1, "title": "hijacked"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected cross-project mem-update to report a tool error")
	}
}

// TestHandleDeleteProjectIsolation mirrors TestHandleUpdateProjectIsolation
// for mem-delete.
func TestHandleDeleteProjectIsolation(t *testing.T) {
	fs := &fakeStore{
		observations: map[int64]*store.Observation{1: {ID: 1, Title: "existing"}},
		projects:     map[int64]string{1: "/other-project"},
	}
	s := NewServer(fs, &fakeOrchestrator{}, "/p", "test-version", zap.NewNop())
	h := handleDelete(s)

	res, err := h(context.Background(), callTool(map[string]any{"id": 1}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected cross-project mem-delete to report a tool error")
	}
	if _, ok := fs.observations[1]; !ok {
		t.Fatalf("expected the observation to survive a rejected cross-project delete")
	}
}

func TestHandleUpdateSameProjectSucceeds(t *testing.T) {
	s := newTestServer()
	h := handleUpdate(s)

	res, err := h(context.Background(), callTool(map[string]any{"id": 1, "title": "renamed"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", callResultText(t, res))
	}
}
