package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/codepad/config"
	"github.com/isdmx/codepad/marketplace"
	"github.com/isdmx/codepad/project"
	"github.com/isdmx/codepad/session"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// SessionManager is the session lifecycle surface exposed as tools
type SessionManager interface {
	Start(ctx context.Context, userID string) (string, error)
	Stop(ctx context.Context, containerID string) (string, error)
	CancelExpiry(containerID string) bool
	Sessions() []session.Handle
}

// ProjectStore is the project surface exposed as tools
type ProjectStore interface {
	project.Store
	Create(name, language, code string) (project.Project, error)
	UpdateCode(id, code string) (project.Project, error)
	Delete(id string) error
}

// TemplateStore is the marketplace surface exposed as tools
type TemplateStore interface {
	Create(nt marketplace.NewTemplate) (marketplace.Template, error)
	Get(id string) (marketplace.Template, error)
	List() []marketplace.Template
	Update(id string, u marketplace.TemplateUpdate) (marketplace.Template, error)
	Search(query string, filters *marketplace.SearchFilters) []marketplace.Template
	Rate(id string, rating float64) (marketplace.Template, error)
	Download(id string) (marketplace.Template, error)
	Categories() []string
	Languages() []string
	Stats() marketplace.Stats
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	sessions  SessionManager
	projects  ProjectStore
	templates TemplateStore
	mcpServer *server.MCPServer
}

// New creates a new MCPServer with every tool registered
func New(cfg *config.Config, logger *zap.Logger, sessions SessionManager, projects ProjectStore, templates TemplateStore) (*MCPServer, error) {
	s := &MCPServer{
		config:    cfg,
		logger:    logger,
		sessions:  sessions,
		projects:  projects,
		templates: templates,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("controller.base_url", cfg.Controller.BaseURL),
		zap.String("controller.project_id", cfg.Controller.ProjectID),
		zap.Int64("controller.max_response_bytes", cfg.Controller.MaxResponseBytes),
		zap.Int("controller.request_timeout_sec", cfg.Controller.RequestTimeoutSec),
		zap.Int("session.expiry_sec", cfg.Session.ExpirySec),
		zap.Bool("session.stop_replaced", cfg.Session.StopReplaced),
		zap.Bool("session.stop_on_shutdown", cfg.Session.StopOnShutdown),
		zap.Int("session.cleanup.max_retries", cfg.Session.Cleanup.MaxRetries),
		zap.Bool("marketplace.seed_samples", cfg.Marketplace.SeedSamples),
		zap.Bool("metrics.enabled", cfg.Metrics.Enabled),
	)

	s.mcpServer = server.NewMCPServer("codepad", Version, server.WithToolCapabilities(false))

	s.registerSessionTools()
	s.registerProjectTools()
	s.registerTemplateTools()

	return s, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// jsonResult renders v as a JSON text result
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// errorResult reports an operation failure to the client without failing the protocol call
func (s *MCPServer) errorResult(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}
