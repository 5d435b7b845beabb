// Package mcpserver exposes the backend's answer, search and ingestion endpoints as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"graphrag/internal/domain"
	"graphrag/internal/session"
)

const (
	serverName    = "graphrag"
	serverVersion = "0.1.0"
)

// Tools holds the collaborators behind the MCP tool handlers.
type Tools struct {
	retriever domain.Retriever
	ingestor  domain.Ingestor
	loader    domain.DocumentLoader
	defaults  domain.Identifiers
	limit     int
	log       *zap.Logger
}

// NewTools builds tool handlers. Identifiers missing from a call fall back to defaults.
func NewTools(retriever domain.Retriever, ingestor domain.Ingestor, loader domain.DocumentLoader, defaults domain.Identifiers, limit int, log *zap.Logger) *Tools {
	if limit <= 0 {
		limit = session.DefaultSearchLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tools{
		retriever: retriever,
		ingestor:  ingestor,
		loader:    loader,
		defaults:  defaults,
		limit:     limit,
		log:       log.Named("mcp"),
	}
}

// NewServer registers the tools on a new MCP server.
func NewServer(t *Tools) *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("rag_answer",
		mcp.WithDescription("Answer a question from the documents in a collection using the knowledge graph"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to answer")),
		mcp.WithString("collection_id", mcp.Description("Collection to query")),
		mcp.WithString("workspace_id", mcp.Description("Workspace of the collection")),
	), t.Answer)

	srv.AddTool(mcp.NewTool("rag_search",
		mcp.WithDescription("Return the document chunks most relevant to a query, with their entities"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("collection_id", mcp.Description("Collection to search")),
		mcp.WithString("workspace_id", mcp.Description("Workspace of the collection")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of chunks")),
	), t.Search)

	srv.AddTool(mcp.NewTool("ingest_file",
		mcp.WithDescription("Upload a local document into a collection"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file to ingest")),
		mcp.WithString("collection_id", mcp.Description("Target collection")),
		mcp.WithString("collection_name", mcp.Description("Display name of the collection")),
		mcp.WithString("workspace_id", mcp.Description("Workspace of the collection")),
	), t.Ingest)

	return srv
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(t *Tools) error {
	return server.ServeStdio(NewServer(t))
}

// Answer handles the rag_answer tool.
func (t *Tools) Answer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := t.queryRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.retriever.Answer(ctx, req)
	if err != nil {
		t.log.Error("answer failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString(res.Answer)
	if len(res.KeyEntities) > 0 {
		b.WriteString("\n\nKey entities: ")
		b.WriteString(strings.Join(res.KeyEntities, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Search handles the rag_search tool. Each result is one JSON line.
func (t *Tools) Search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := t.queryRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		req.Limit = limit
	}

	results, err := t.retriever.Search(ctx, req)
	if err != nil {
		t.log.Error("search failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var response string
	for _, r := range results {
		raw, err := json.Marshal(struct {
			Score    float64  `json:"score"`
			File     string   `json:"file,omitempty"`
			Text     string   `json:"text"`
			Entities []string `json:"entities,omitempty"`
		}{
			Score:    r.DisplayScore(),
			File:     r.Filename,
			Text:     r.Content,
			Entities: r.EntityChips(len(r.Entities)),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		response += string(raw) + "\n"
	}
	return mcp.NewToolResultText(response), nil
}

// Ingest handles the ingest_file tool.
func (t *Tools) Ingest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := t.identifiers(request)
	ids.CollectionName = request.GetString("collection_name", t.defaults.CollectionName)
	ids = ids.Normalize()
	if ids.CollectionID == "" {
		return mcp.NewToolResultError("collection_id is required"), nil
	}

	summary, err := session.UploadDocument(ctx, t.loader, t.ingestor, ids, path, nil)
	if err != nil {
		t.log.Error("ingest failed", zap.String("path", path), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	status := domain.UploadStatus{State: domain.UploadSucceeded, Chunks: summary.Chunks, Entities: summary.Entities}
	return mcp.NewToolResultText(status.String()), nil
}

func (t *Tools) identifiers(request mcp.CallToolRequest) domain.Identifiers {
	return domain.Identifiers{
		WorkspaceID:  request.GetString("workspace_id", t.defaults.WorkspaceID),
		CollectionID: request.GetString("collection_id", t.defaults.CollectionID),
	}
}

func (t *Tools) queryRequest(request mcp.CallToolRequest) (domain.QueryRequest, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return domain.QueryRequest{}, err
	}
	ids := t.identifiers(request).Normalize()
	if strings.TrimSpace(q) == "" || ids.CollectionID == "" {
		return domain.QueryRequest{}, &domain.ValidationError{Field: "query", Message: "Please enter a query and collection ID"}
	}
	return domain.QueryRequest{
		Query:        q,
		WorkspaceID:  ids.WorkspaceID,
		CollectionID: ids.CollectionID,
		Limit:        t.limit,
	}, nil
}
