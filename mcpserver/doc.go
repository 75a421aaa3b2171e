// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the IDE backend as MCP tools using the
// mark3labs/mcp-go library: start_session and stop_session drive the
// editor container lifecycle, the project tools edit user projects and the
// template tools browse and curate the marketplace. Operation failures are
// returned as error tool results carrying a human-readable message.
package mcpserver
