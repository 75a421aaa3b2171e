package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

func (s *MCPServer) registerSessionTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start an ephemeral editor container for a user and return its editor URL. The container is stopped automatically when the session expires."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Opaque user identifier")),
	), s.handleStartSession)

	s.mcpServer.AddTool(mcp.NewTool("stop_session",
		mcp.WithDescription("Stop an editor container. Stopping an already stopped container succeeds."),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Controller-assigned container id")),
	), s.handleStopSession)

	s.mcpServer.AddTool(mcp.NewTool("cancel_session_expiry",
		mcp.WithDescription("Cancel the pending automatic stop of a container"),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Controller-assigned container id")),
	), s.handleCancelSessionExpiry)

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List live sessions, oldest first"),
	), s.handleListSessions)
}

func (s *MCPServer) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, fmt.Errorf("user_id parameter is required: %w", err)
	}

	s.logger.Info("session start requested", zap.String("user_id", userID))

	editorURL, err := s.sessions.Start(ctx, userID)
	if err != nil {
		return s.errorResult("start_session", err), nil
	}
	return mcp.NewToolResultText(editorURL), nil
}

func (s *MCPServer) handleStopSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containerID, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}

	s.logger.Info("session stop requested", zap.String("container_id", containerID))

	msg, err := s.sessions.Stop(ctx, containerID)
	if err != nil {
		return s.errorResult("stop_session", err), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *MCPServer) handleCancelSessionExpiry(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containerID, err := request.RequireString("container_id")
	if err != nil {
		return nil, fmt.Errorf("container_id parameter is required: %w", err)
	}

	return jsonResult(map[string]any{
		"container_id": containerID,
		"cancelled":    s.sessions.CancelExpiry(containerID),
	})
}

func (s *MCPServer) handleListSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.sessions.Sessions())
}
