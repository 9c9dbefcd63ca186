package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

// InitializeMCPClient performs the MCP handshake and closes the client when the test ends.
func InitializeMCPClient(t *testing.T, client *mcpclient.Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	_, err := client.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ClientInfo: mcp.Implementation{
				Name:    "mockrec-test",
				Version: "1.0.0",
			},
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
}

// CallMCPTool calls an MCP tool and returns the result.
func CallMCPTool(t *testing.T, client *mcpclient.Client, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	result, err := client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	require.NoError(t, err)
	return result
}

// ExtractMCPText extracts text content from an MCP tool result.
func ExtractMCPText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content, "result should have content")
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found in result")
	return ""
}

// CallMCPToolJSON calls a tool that must succeed and decodes its JSON text into out.
func CallMCPToolJSON(t *testing.T, client *mcpclient.Client, name string, args map[string]interface{}, out interface{}) {
	t.Helper()

	result := CallMCPTool(t, client, name, args)
	text := ExtractMCPText(t, result)
	require.False(t, result.IsError, "%s failed: %s", name, text)
	require.NoError(t, json.Unmarshal([]byte(text), out))
}
