package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/isdmx/codepad/marketplace"
)

func (s *MCPServer) registerTemplateTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List all marketplace templates"),
	), s.handleListTemplates)

	s.mcpServer.AddTool(mcp.NewTool("get_template",
		mcp.WithDescription("Fetch a template by id"),
		mcp.WithString("template_id", mcp.Required()),
	), s.handleGetTemplate)

	s.mcpServer.AddTool(mcp.NewTool("search_templates",
		mcp.WithDescription("Search templates by text in name, description or code, with optional filters"),
		mcp.WithString("query", mcp.Description("Case-insensitive text to look for")),
		mcp.WithString("category"),
		mcp.WithString("language"),
		mcp.WithString("author"),
		mcp.WithNumber("min_rating", mcp.Min(0), mcp.Max(marketplace.MaxRating)),
	), s.handleSearchTemplates)

	s.mcpServer.AddTool(mcp.NewTool("create_template",
		mcp.WithDescription("Publish a new template"),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("language", mcp.Required()),
		mcp.WithString("description"),
		mcp.WithString("category"),
		mcp.WithString("code"),
		mcp.WithString("author"),
	), s.handleCreateTemplate)

	s.mcpServer.AddTool(mcp.NewTool("update_template",
		mcp.WithDescription("Change fields of a template; omitted fields are kept"),
		mcp.WithString("template_id", mcp.Required()),
		mcp.WithString("name"),
		mcp.WithString("description"),
		mcp.WithString("category"),
		mcp.WithString("language"),
		mcp.WithString("code"),
	), s.handleUpdateTemplate)

	s.mcpServer.AddTool(mcp.NewTool("rate_template",
		mcp.WithDescription("Submit a 1-5 rating for a template"),
		mcp.WithString("template_id", mcp.Required()),
		mcp.WithNumber("rating", mcp.Required(), mcp.Min(marketplace.MinRating), mcp.Max(marketplace.MaxRating)),
	), s.handleRateTemplate)

	s.mcpServer.AddTool(mcp.NewTool("download_template",
		mcp.WithDescription("Record a download and return the template"),
		mcp.WithString("template_id", mcp.Required()),
	), s.handleDownloadTemplate)

	s.mcpServer.AddTool(mcp.NewTool("template_stats",
		mcp.WithDescription("Total templates, average rating and total downloads"),
	), s.handleTemplateStats)

	s.mcpServer.AddTool(mcp.NewTool("template_categories",
		mcp.WithDescription("Distinct template categories"),
	), s.handleTemplateCategories)

	s.mcpServer.AddTool(mcp.NewTool("template_languages",
		mcp.WithDescription("Distinct template languages"),
	), s.handleTemplateLanguages)
}

func (s *MCPServer) handleListTemplates(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.templates.List())
}

func (s *MCPServer) handleGetTemplate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return nil, fmt.Errorf("template_id parameter is required: %w", err)
	}

	t, err := s.templates.Get(id)
	if err != nil {
		return s.errorResult("get_template", err), nil
	}
	return jsonResult(t)
}

func (s *MCPServer) handleSearchTemplates(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filters := &marketplace.SearchFilters{
		Category:  request.GetString("category", ""),
		Language:  request.GetString("language", ""),
		Author:    request.GetString("author", ""),
		MinRating: request.GetFloat("min_rating", 0),
	}
	return jsonResult(s.templates.Search(request.GetString("query", ""), filters))
}

func (s *MCPServer) handleCreateTemplate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return nil, fmt.Errorf("name parameter is required: %w", err)
	}
	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	t, err := s.templates.Create(marketplace.NewTemplate{
		Name:        name,
		Language:    language,
		Description: request.GetString("description", ""),
		Category:    request.GetString("category", ""),
		Code:        request.GetString("code", ""),
		Author:      request.GetString("author", ""),
	})
	if err != nil {
		return s.errorResult("create_template", err), nil
	}
	return jsonResult(t)
}

func (s *MCPServer) handleUpdateTemplate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return nil, fmt.Errorf("template_id parameter is required: %w", err)
	}

	args := request.GetArguments()
	optional := func(key string) *string {
		v, ok := args[key].(string)
		if !ok {
			return nil
		}
		return &v
	}

	t, err := s.templates.Update(id, marketplace.TemplateUpdate{
		Name:        optional("name"),
		Description: optional("description"),
		Category:    optional("category"),
		Language:    optional("language"),
		Code:        optional("code"),
	})
	if err != nil {
		return s.errorResult("update_template", err), nil
	}
	return jsonResult(t)
}

func (s *MCPServer) handleRateTemplate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return nil, fmt.Errorf("template_id parameter is required: %w", err)
	}
	rating, err := request.RequireFloat("rating")
	if err != nil {
		return nil, fmt.Errorf("rating parameter is required: %w", err)
	}

	t, err := s.templates.Rate(id, rating)
	if err != nil {
		return s.errorResult("rate_template", err), nil
	}
	return jsonResult(t)
}

func (s *MCPServer) handleDownloadTemplate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return nil, fmt.Errorf("template_id parameter is required: %w", err)
	}

	t, err := s.templates.Download(id)
	if err != nil {
		return s.errorResult("download_template", err), nil
	}
	return jsonResult(t)
}

func (s *MCPServer) handleTemplateStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.templates.Stats())
}

func (s *MCPServer) handleTemplateCategories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.templates.Categories())
}

func (s *MCPServer) handleTemplateLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.templates.Languages())
}
