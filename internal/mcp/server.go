// Package mcp implements C8: the Model Context Protocol request loop,
// exposing the memory tool catalog over stdio via mark3labs/mcp-go — the
// library the rest of this project's retrieval pack reaches for to
// implement MCP's wire framing, routing table, and isError-wrapped tool
// results.
package mcp

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/search"
	"github.com/jalfaro/engramd/internal/store"
)

// storeAPI is the slice of *store.Store the MCP handlers need.
type storeAPI interface {
	GetObservation(id int64) (*store.Observation, error)
	Timeline(observationID int64, before, after int) (*store.TimelineResult, error)
	AddObservation(p store.AddObservationParams) (int64, error)
	Export(project string) (*store.ExportData, error)
	Import(data *store.ExportData) (*store.ImportResult, error)
	UpdateObservation(id int64, p store.UpdateObservationParams) (*store.Observation, error)
	DeleteObservation(id int64) error
	ProjectForObservation(id int64) (string, error)
}

type orchestratorAPI interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
}

const serverInstructions = `engramd provides per-project persistent memory for AI coding agents: ` +
	`search past observations, save new ones, and inspect the timeline ` +
	`around a given observation. mem-search and mem-recall are read-only; ` +
	`mem-save adds a new observation directly; mem-update and mem-delete ` +
	`only affect observations owned by this server's configured project.`

// Server is C8: a thin wrapper around an mcp-go server.MCPServer that
// registers engramd's tool catalog. Alias resolution (spec §4.8) and
// project isolation (spec §8 invariant 10) are layered as ordinary
// tool-handler logic — see catalog.go and handlers.go — rather than
// reimplemented at the transport level.
type Server struct {
	store        storeAPI
	orchestrator orchestratorAPI
	project      string
	version      string
	log          *zap.Logger

	mcp *mcpserver.MCPServer
}

// NewServer builds a Server and registers every tool in the catalog,
// including the memory.* aliases (spec §4.8 open question, resolved in
// SPEC_FULL.md §4.8: mem-* is canonical, the 4 memory.* names alias it).
func NewServer(st storeAPI, orchestrator orchestratorAPI, project, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{store: st, orchestrator: orchestrator, project: project, version: version, log: log}

	s.mcp = mcpserver.NewMCPServer(
		"engramd",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)
	registerTools(s.mcp, s)
	return s
}

// Serve runs the MCP server over stdio until the client disconnects or
// stdin closes.
func (s *Server) Serve() error {
	return mcpserver.ServeStdio(s.mcp)
}

// MCPServer exposes the underlying *server.MCPServer so tests (and
// alternative transports) can drive tool calls directly without going
// through stdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}
