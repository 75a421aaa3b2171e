// Package main is the entry point for the CodePad MCP server.
//
// CodePad is the backend of a browser IDE. It starts and stops ephemeral
// editor containers through an external controller, stopping each one
// automatically after its session expires, and keeps the user projects and
// the template marketplace. The server supports both stdio and HTTP
// transports and can expose Prometheus metrics on a separate listener.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
