package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// aliasOf maps the `memory.*` tool-call aliases onto the canonical `mem-*`
// identifiers (spec §4.8 open question, resolved in SPEC_FULL.md §4.8:
// mem-* is canonical). Tools with no documented alias are absent here.
// registerTools uses this to register each alias against its canonical
// tool's handler, so the mapping has one source of truth.
var aliasOf = map[string]string{
	"memory.find":    "mem-search",
	"memory.get":     "mem-recall",
	"memory.history": "mem-timeline",
	"memory.create":  "mem-save",
}

// registerTools builds engramd's tool catalog against an mcp-go server.
// Each canonical mem-* tool is registered once with its full schema; each
// memory.* alias from aliasOf is then registered as a thin passthrough to
// the same handler, so alias resolution stays ordinary handler-level
// logic instead of reimplemented routing.
func registerTools(srv *mcpserver.MCPServer, s *Server) {
	handlers := map[string]mcpserver.ToolHandlerFunc{}

	addTool := func(tool mcp.Tool, handler mcpserver.ToolHandlerFunc) {
		handlers[tool.Name] = handler
		srv.AddTool(tool, handler)
	}

	addTool(
		mcp.NewTool("mem-search",
			mcp.WithDescription("Search past observations by text, filters, and optional entity-graph augmentation."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithString("query", mcp.Description("Full-text query; empty means filter-only or recency order.")),
			mcp.WithString("project", mcp.Description("Restrict results to this project path.")),
			mcp.WithString("strategy", mcp.Description("filter-only | semantic | hybrid")),
			mcp.WithNumber("limit", mcp.Description("Maximum results to return.")),
			mcp.WithArray("types", mcp.Description("Restrict to these observation types."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithNumber("importanceMin", mcp.Description("Minimum importance, inclusive.")),
			mcp.WithNumber("importanceMax", mcp.Description("Maximum importance, inclusive.")),
			mcp.WithString("after", mcp.Description("Only observations created at or after this timestamp.")),
			mcp.WithString("before", mcp.Description("Only observations created at or before this timestamp.")),
			mcp.WithArray("concepts", mcp.Description("Match any of these concepts."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("files", mcp.Description("Match any of these file paths (substring, against files-read or files-modified)."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithBoolean("includeSuperseded", mcp.Description("Include superseded observations. Applies only when no query text is given; text searches always exclude them.")),
			mcp.WithBoolean("useEntityGraph", mcp.Description("Augment results via entity-graph traversal.")),
		),
		handleSearch(s),
	)

	addTool(
		mcp.NewTool("mem-recall",
			mcp.WithDescription("Fetch one observation in full, including raw output and embedding presence."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Observation id.")),
		),
		handleRecall(s),
	)

	addTool(
		mcp.NewTool("mem-timeline",
			mcp.WithDescription("Return chronological context around one observation."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Focus observation id.")),
			mcp.WithNumber("before", mcp.Description("Observations to include before the focus.")),
			mcp.WithNumber("after", mcp.Description("Observations to include after the focus.")),
		),
		handleTimeline(s),
	)

	addTool(
		mcp.NewTool("mem-save",
			mcp.WithDescription("Persist a new observation directly, bypassing the pending queue."),
			mcp.WithReadOnlyHintAnnotation(false),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithString("sessionId", mcp.Required(), mcp.Description("Owning session id.")),
			mcp.WithString("type", mcp.Required(), mcp.Description("One of decision, bugfix, feature, refactor, discovery, change.")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short title.")),
			mcp.WithString("subtitle", mcp.Description("Optional subtitle.")),
			mcp.WithString("narrative", mcp.Required(), mcp.Description("Full narrative text.")),
			mcp.WithArray("facts", mcp.Description("Discrete facts."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("concepts", mcp.Description("Associated concepts."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("filesRead", mcp.Description("Files read."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithArray("filesModified", mcp.Description("Files modified."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithNumber("importance", mcp.Description("1-5, defaults to 3.")),
		),
		handleSave(s),
	)

	addTool(
		mcp.NewTool("mem-export",
			mcp.WithDescription("Export all non-superseded observations and summaries for a project."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("project", mcp.Required(), mcp.Description("Project path to export.")),
		),
		handleExport(s),
	)

	addTool(
		mcp.NewTool("mem-import",
			mcp.WithDescription("Import an export document, skipping observations that already exist."),
			mcp.WithObject("document", mcp.Required(), mcp.Description("An export document produced by mem-export.")),
		),
		handleImport(s),
	)

	addTool(
		mcp.NewTool("mem-update",
			mcp.WithDescription("Update mutable fields of an observation owned by this server's project."),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Observation id.")),
			mcp.WithString("title", mcp.Description("New title.")),
			mcp.WithString("subtitle", mcp.Description("New subtitle.")),
			mcp.WithString("narrative", mcp.Description("New narrative.")),
			mcp.WithArray("concepts", mcp.Description("New concepts list."), mcp.Items(map[string]any{"type": "string"})),
			mcp.WithNumber("importance", mcp.Description("New importance.")),
		),
		handleUpdate(s),
	)

	addTool(
		mcp.NewTool("mem-delete",
			mcp.WithDescription("Hard-delete an observation owned by this server's project."),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(false),
			mcp.WithNumber("id", mcp.Required(), mcp.Description("Observation id.")),
		),
		handleDelete(s),
	)

	for alias, canonical := range aliasOf {
		srv.AddTool(
			mcp.NewTool(alias, mcp.WithDescription("Alias of "+canonical+".")),
			handlers[canonical],
		)
	}
}
