package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *MCPServer) registerProjectTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a code project"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Source language, e.g. motoko or rust")),
		mcp.WithString("code", mcp.Description("Initial source code")),
	), s.handleCreateProject)

	s.mcpServer.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Fetch a project by id"),
		mcp.WithString("project_id", mcp.Required()),
	), s.handleGetProject)

	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects, oldest first"),
	), s.handleListProjects)

	s.mcpServer.AddTool(mcp.NewTool("update_project_code",
		mcp.WithDescription("Replace the source code of a project"),
		mcp.WithString("project_id", mcp.Required()),
		mcp.WithString("code", mcp.Required()),
	), s.handleUpdateProjectCode)

	s.mcpServer.AddTool(mcp.NewTool("delete_project",
		mcp.WithDescription("Delete a project"),
		mcp.WithString("project_id", mcp.Required()),
	), s.handleDeleteProject)
}

func (s *MCPServer) handleCreateProject(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return nil, fmt.Errorf("name parameter is required: %w", err)
	}
	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	p, err := s.projects.Create(name, language, request.GetString("code", ""))
	if err != nil {
		return s.errorResult("create_project", err), nil
	}
	return jsonResult(p)
}

func (s *MCPServer) handleGetProject(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return nil, fmt.Errorf("project_id parameter is required: %w", err)
	}

	p, err := s.projects.Get(id)
	if err != nil {
		return s.errorResult("get_project", err), nil
	}
	return jsonResult(p)
}

func (s *MCPServer) handleListProjects(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.projects.List())
}

func (s *MCPServer) handleUpdateProjectCode(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return nil, fmt.Errorf("project_id parameter is required: %w", err)
	}
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	p, err := s.projects.UpdateCode(id, code)
	if err != nil {
		return s.errorResult("update_project_code", err), nil
	}
	return jsonResult(p)
}

func (s *MCPServer) handleDeleteProject(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return nil, fmt.Errorf("project_id parameter is required: %w", err)
	}

	if err := s.projects.Delete(id); err != nil {
		return s.errorResult("delete_project", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("project %s deleted", id)), nil
}
