package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all firewall tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("walletguard", "1.0.0")
	client := NewFirewallClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolCheckTransaction, h.HandleCheckTransaction)
	s.AddTool(ToolExecuteTransaction, h.HandleExecuteTransaction)
	s.AddTool(ToolGetIntercept, h.HandleGetIntercept)
	s.AddTool(ToolListIntercepts, h.HandleListIntercepts)
	s.AddTool(ToolManageList, h.HandleManageList)

	return s
}
