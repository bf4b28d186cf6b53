// CLAUDE:SUMMARY Registers relocator MCP tools: generate, query, current, history, stats.
package relocator

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/relocator/kit"
)

// MCPServer returns a new MCP server exposing the relocator tools.
func (s *Service) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "relocator", Version: "1.0.0"}, nil)
	s.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers relocator tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "relocator_generate",
		Description: "Generate a resilient union locator for an element. Pass a recorded snapshot, or html plus a target expression selecting the element.",
		InputSchema: inputSchema(map[string]any{
			"html":     map[string]any{"type": "string", "description": "Page HTML"},
			"target":   map[string]any{"type": "string", "description": "Expression selecting the recorded element in html"},
			"snapshot": map[string]any{"type": "object", "description": "Element snapshot (tag, text, id, class_name, aria_label, title, role, parent, previous_sibling)"},
		}, nil),
	}, s.generateEndpoint(), kit.DecodeJSON[generateRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "relocator_query",
		Description: "Evaluate a locator expression (resloc=, css= or plain XPath) against HTML and list the matched elements in document order.",
		InputSchema: inputSchema(map[string]any{
			"html":       map[string]any{"type": "string", "description": "Page HTML"},
			"expression": map[string]any{"type": "string", "description": "Locator expression"},
		}, []string{"html", "expression"}),
	}, s.queryEndpoint(), kit.DecodeJSON[queryRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "relocator_current",
		Description: "Return the current healed locator for a logical key, or null when the key has never been healed.",
		InputSchema: inputSchema(map[string]any{
			"key": map[string]any{"type": "string", "description": "Logical element key"},
		}, []string{"key"}),
	}, s.currentEndpoint(), kit.DecodeJSON[keyRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "relocator_history",
		Description: "Return every cached locator for a logical key, oldest first, including superseded ones.",
		InputSchema: inputSchema(map[string]any{
			"key": map[string]any{"type": "string", "description": "Logical element key"},
		}, []string{"key"}),
	}, s.historyEndpoint(), kit.DecodeJSON[keyRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "relocator_stats",
		Description: "Return locator cache counters: keys, entries, superseded entries.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.statsEndpoint(), kit.DecodeJSON[struct{}]())
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
