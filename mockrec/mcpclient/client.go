// Package mcpclient provides an MCP client wrapper for CLI commands.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-appsec/mockrec/mockrec/config"
)

const (
	DefaultMCPURL = "http://" + config.DefaultControlAddr + "/mcp"
	ClientTimeout = 30 * time.Second
)

// URLFromAddr returns the streamable MCP endpoint for a control listen address.
func URLFromAddr(addr string) string {
	if addr == "" {
		return DefaultMCPURL
	}
	return "http://" + addr + "/mcp"
}

// Client wraps the MCP client for CLI usage.
type Client struct {
	mcpClient *client.Client
	mcpURL    string
}

// Connect creates a new MCP client and connects to the server. Uses DefaultMCPURL if mcpURL is empty.
func Connect(ctx context.Context, mcpURL string) (*Client, error) {
	if mcpURL == "" {
		mcpURL = DefaultMCPURL
	}

	mcpClient, err := client.NewStreamableHttpClient(mcpURL,
		transport.WithHTTPBasicClient(&http.Client{Timeout: ClientTimeout}),
	)
	if err != nil {
		return nil, formatConnectionError(mcpURL, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "mockrec-cli",
		Version: config.Version,
	}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		return nil, formatConnectionError(mcpURL, err)
	}

	return &Client{mcpClient: mcpClient, mcpURL: mcpURL}, nil
}

// Close closes the MCP client connection.
func (c *Client) Close() error {
	if c.mcpClient != nil {
		return c.mcpClient.Close()
	}
	return nil
}

// CallTool calls an MCP tool and returns the raw result. Tool errors are returned as errors.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	result, err := c.mcpClient.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, translateError(err)
	} else if result.IsError {
		return nil, errors.New(extractTextContent(result.Content))
	}
	return result, nil
}

// CallToolJSON calls an MCP tool and unmarshals the JSON result into dest.
func (c *Client) CallToolJSON(ctx context.Context, name string, args map[string]interface{}, dest interface{}) error {
	result, err := c.CallTool(ctx, name, args)
	if err != nil {
		return fmt.Errorf("call tool %s: %w", name, err)
	}
	text := extractTextContent(result.Content)
	if err := json.Unmarshal([]byte(text), dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// extractTextContent extracts text from MCP content items.
func extractTextContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// isContextStopError returns a user-friendly message for context errors, or empty string.
func isContextStopError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return ""
}

// formatConnectionError formats connection errors with actionable messages.
func formatConnectionError(mcpURL string, err error) error {
	if msg := isContextStopError(err); msg != "" {
		return fmt.Errorf("connection to mockrec at %s %s", mcpURL, msg)
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") || strings.Contains(errStr, "dial tcp") {
		return fmt.Errorf("cannot connect to mockrec at %s\nStart the service with: mockrec serve", mcpURL)
	}

	return fmt.Errorf("MCP connection failed: %w", err)
}

func translateError(err error) error {
	if msg := isContextStopError(err); msg != "" {
		return fmt.Errorf("request %s", msg)
	} else if strings.Contains(err.Error(), "connection refused") {
		return errors.New("mockrec service not running. Start with: mockrec serve")
	}
	return err
}
