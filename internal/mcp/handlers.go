package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jalfaro/engramd/internal/search"
	"github.com/jalfaro/engramd/internal/store"
)

// bindArgs decodes a tool call's arguments into v by round-tripping
// through encoding/json, so the same typed param structs that used to
// decode a raw JSON-RPC params blob work unchanged against mcp-go's
// map[string]any-shaped CallToolRequest arguments.
func bindArgs(req mcp.CallToolRequest, v interface{}) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func marshalText(v interface{}) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func handleSearch(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			Query             string   `json:"query"`
			Project           string   `json:"project"`
			Strategy          string   `json:"strategy"`
			Limit             int      `json:"limit"`
			Types             []string `json:"types"`
			ImportanceMin     int      `json:"importanceMin"`
			ImportanceMax     int      `json:"importanceMax"`
			After             string   `json:"after"`
			Before            string   `json:"before"`
			Concepts          []string `json:"concepts"`
			Files             []string `json:"files"`
			IncludeSuperseded bool     `json:"includeSuperseded"`
			UseEntityGraph    bool     `json:"useEntityGraph"`
		}
		if err := bindArgs(req, &p); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if p.Project == "" {
			p.Project = s.project
		}

		results, err := s.orchestrator.Search(ctx, search.Query{
			Text:              p.Query,
			Project:           p.Project,
			Strategy:          search.Strategy(p.Strategy),
			Limit:             p.Limit,
			Types:             p.Types,
			MinImportance:     p.ImportanceMin,
			MaxImportance:     p.ImportanceMax,
			After:             p.After,
			Before:            p.Before,
			Concepts:          p.Concepts,
			Files:             p.Files,
			IncludeSuperseded: p.IncludeSuperseded,
			UseEntityGraph:    p.UseEntityGraph,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return marshalText(map[string]interface{}{"results": results})
	}
}

func handleRecall(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			ID int64 `json:"id"`
		}
		if err := bindArgs(req, &p); err != nil || p.ID == 0 {
			return mcp.NewToolResultError("mem-recall requires an integer id"), nil
		}
		obs, err := s.store.GetObservation(p.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("observation #%d not found: %v", p.ID, err)), nil
		}
		return marshalText(obs)
	}
}

func handleTimeline(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			ID     int64 `json:"id"`
			Before int   `json:"before"`
			After  int   `json:"after"`
		}
		if err := bindArgs(req, &p); err != nil || p.ID == 0 {
			return mcp.NewToolResultError("mem-timeline requires an integer id"), nil
		}
		tl, err := s.store.Timeline(p.ID, p.Before, p.After)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("timeline for #%d failed: %v", p.ID, err)), nil
		}
		return marshalText(tl)
	}
}

func handleSave(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			SessionID     string   `json:"sessionId"`
			Type          string   `json:"type"`
			Title         string   `json:"title"`
			Subtitle      string   `json:"subtitle"`
			Narrative     string   `json:"narrative"`
			Facts         []string `json:"facts"`
			Concepts      []string `json:"concepts"`
			FilesRead     []string `json:"filesRead"`
			FilesModified []string `json:"filesModified"`
			Importance    int      `json:"importance"`
		}
		if err := bindArgs(req, &p); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if p.SessionID == "" || p.Title == "" || p.Narrative == "" {
			return mcp.NewToolResultError("mem-save requires sessionId, type, title, and narrative"), nil
		}
		if !store.IsValidObservationType(p.Type) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid observation type %q", p.Type)), nil
		}

		id, err := s.store.AddObservation(store.AddObservationParams{
			SessionID:     p.SessionID,
			Type:          p.Type,
			Title:         p.Title,
			Subtitle:      p.Subtitle,
			Narrative:     p.Narrative,
			Facts:         p.Facts,
			Concepts:      p.Concepts,
			FilesRead:     p.FilesRead,
			FilesModified: p.FilesModified,
			Importance:    p.Importance,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
		}
		return marshalText(map[string]interface{}{"id": id})
	}
}

func handleExport(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			Project string `json:"project"`
		}
		if err := bindArgs(req, &p); err != nil || p.Project == "" {
			return mcp.NewToolResultError("mem-export requires a project"), nil
		}
		data, err := s.store.Export(p.Project)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
		}
		return marshalText(data)
	}
}

func handleImport(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			Document store.ExportData `json:"document"`
		}
		if err := bindArgs(req, &p); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		result, err := s.store.Import(&p.Document)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
		}
		return marshalText(result)
	}
}

// checkProjectIsolation implements spec §4.8/§8 invariant 10: mem-update
// and mem-delete are no-ops outside the server's configured project. It is
// ordinary handler logic, layered on top of mcp-go's transport rather than
// enforced by it.
func (s *Server) checkProjectIsolation(id int64) error {
	owner, err := s.store.ProjectForObservation(id)
	if err != nil {
		return fmt.Errorf("observation #%d not found: %w", id, err)
	}
	if s.project != "" && owner != s.project {
		return fmt.Errorf("observation #%d belongs to a different project", id)
	}
	return nil
}

func handleUpdate(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			ID         int64    `json:"id"`
			Title      *string  `json:"title"`
			Subtitle   *string  `json:"subtitle"`
			Narrative  *string  `json:"narrative"`
			Concepts   []string `json:"concepts"`
			Importance *int     `json:"importance"`
		}
		if err := bindArgs(req, &p); err != nil || p.ID == 0 {
			return mcp.NewToolResultError("mem-update requires an integer id"), nil
		}
		if err := s.checkProjectIsolation(p.ID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		obs, err := s.store.UpdateObservation(p.ID, store.UpdateObservationParams{
			Title:      p.Title,
			Subtitle:   p.Subtitle,
			Narrative:  p.Narrative,
			Concepts:   p.Concepts,
			Importance: p.Importance,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("update failed: %v", err)), nil
		}
		return marshalText(obs)
	}
}

func handleDelete(s *Server) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p struct {
			ID int64 `json:"id"`
		}
		if err := bindArgs(req, &p); err != nil || p.ID == 0 {
			return mcp.NewToolResultError("mem-delete requires an integer id"), nil
		}
		if err := s.checkProjectIsolation(p.ID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.store.DeleteObservation(p.ID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return marshalText(map[string]interface{}{"deleted": p.ID})
	}
}
