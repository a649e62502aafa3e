// Package mcptools exposes the study catalog to MCP clients as tools.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/dgellow/cpa-front/internal/academy"
	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/download"
	"github.com/dgellow/cpa-front/internal/log"
)

// ServerName is the MCP server name announced to clients
const ServerName = "cpa-academy"

// Catalog is the part of the study API the tools use
type Catalog interface {
	ListSubjects(ctx context.Context) ([]academy.Subject, error)
	ListUnits(ctx context.Context, q academy.UnitQuery) ([]academy.Unit, error)
	ListMaterials(ctx context.Context, q academy.MaterialQuery) (*academy.MaterialPage, error)
	GetQuestionSet(ctx context.Context, id int) (*academy.QuestionSet, error)
}

// Downloader fetches a material file
type Downloader interface {
	Download(ctx context.Context, path string) (*download.Outcome, error)
}

// Tools holds the tool handlers
type Tools struct {
	catalog    Catalog
	downloader Downloader
}

func New(catalog Catalog, downloader Downloader) *Tools {
	return &Tools{catalog: catalog, downloader: downloader}
}

// NewServer builds an MCP server with every tool registered
func NewServer(t *Tools, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(ServerName, version,
		mcpserver.WithToolCapabilities(true),
	)
	s.AddTools(t.ServerTools()...)
	return s
}

// ServeStdio serves s on stdin and stdout until the client disconnects
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

// ServerTools returns the tool definitions with their handlers
func (t *Tools) ServerTools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{
			Tool: mcp.NewTool("list_subjects",
				mcp.WithDescription("List every subject with its units"),
			),
			Handler: t.listSubjects,
		},
		{
			Tool: mcp.NewTool("list_units",
				mcp.WithDescription("List course units in display order"),
				mcp.WithNumber("id", mcp.Description("Only the unit with this ID")),
				mcp.WithString("search", mcp.Description("Match title, code, description or subject name")),
			),
			Handler: t.listUnits,
		},
		{
			Tool: mcp.NewTool("search_materials",
				mcp.WithDescription("Search public study materials"),
				mcp.WithNumber("unit", mcp.Description("Restrict to a unit ID")),
				mcp.WithString("search", mcp.Description("Text to find in title or description")),
				mcp.WithString("sort", mcp.Description("Sort order"), mcp.Enum(academy.SortByDownloads)),
				mcp.WithNumber("page", mcp.Description("Result page, starting at 1")),
			),
			Handler: t.searchMaterials,
		},
		{
			Tool: mcp.NewTool("get_question_set",
				mcp.WithDescription("Fetch a quiz with its questions and choices"),
				mcp.WithNumber("id", mcp.Required(), mcp.Description("Question set ID")),
			),
			Handler: t.getQuestionSet,
		},
		{
			Tool: mcp.NewTool("download_material",
				mcp.WithDescription("Download a material file to the local download directory"),
				mcp.WithNumber("id", mcp.Required(), mcp.Description("Material ID")),
			),
			Handler: t.downloadMaterial,
		},
	}
}

func (t *Tools) listSubjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjects, err := t.catalog.ListSubjects(ctx)
	if err != nil {
		return toolError("list_subjects", err), nil
	}
	return jsonResult(subjects)
}

func (t *Tools) listUnits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	units, err := t.catalog.ListUnits(ctx, academy.UnitQuery{
		ID:     req.GetInt("id", 0),
		Search: req.GetString("search", ""),
	})
	if err != nil {
		return toolError("list_units", err), nil
	}
	return jsonResult(units)
}

func (t *Tools) searchMaterials(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := t.catalog.ListMaterials(ctx, academy.MaterialQuery{
		Unit:   req.GetInt("unit", 0),
		Search: req.GetString("search", ""),
		Sort:   req.GetString("sort", ""),
		Page:   req.GetInt("page", 0),
	})
	if err != nil {
		return toolError("search_materials", err), nil
	}
	return jsonResult(page)
}

func (t *Tools) getQuestionSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	qs, err := t.catalog.GetQuestionSet(ctx, id)
	if err != nil {
		return toolError("get_question_set", err), nil
	}
	return jsonResult(qs)
}

func (t *Tools) downloadMaterial(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := t.downloader.Download(ctx, academy.MaterialDownloadPath(id))
	if err != nil {
		return toolError("download_material", err), nil
	}
	if out.RedirectURL != "" && out.Path == out.RedirectURL {
		return mcp.NewToolResultText(fmt.Sprintf("Opened download link for material %d", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved material %d to %s", id, out.Path)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(tool string, err error) *mcp.CallToolResult {
	log.LogWarnWithFields("mcptools", "Tool call failed", map[string]any{
		"tool":  tool,
		"error": err.Error(),
	})
	if errors.Is(err, apiclient.ErrUnauthenticated) {
		return mcp.NewToolResultError("not signed in or session expired: run `cpa login` and retry")
	}
	return mcp.NewToolResultError(err.Error())
}
