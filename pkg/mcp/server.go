package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
)

const (
	serverName    = "nature-remo"
	serverVersion = "1.0.0"
)

// Server exposes the Nature Remo lights and TVs as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	controller device.Controller
	validator  *schema.Validator
}

// NewServer creates a new MCP server for device control
func NewServer(controller device.Controller, validator *schema.Validator) *Server {
	s := &Server{
		controller: controller,
		validator:  validator,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
