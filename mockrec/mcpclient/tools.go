package mcpclient

import (
	"context"

	"github.com/go-appsec/mockrec/mockrec/protocol"
)

// State calls state_get.
func (c *Client) State(ctx context.Context) (*protocol.StateResponse, error) {
	var resp protocol.StateResponse
	if err := c.CallToolJSON(ctx, "state_get", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModeInitialize calls mode_initialize, starting a new session.
func (c *Client) ModeInitialize(ctx context.Context, mode string) (*protocol.StateResponse, error) {
	var resp protocol.StateResponse
	if err := c.CallToolJSON(ctx, "mode_initialize", map[string]interface{}{"mode": mode}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModeStop calls mode_stop.
func (c *Client) ModeStop(ctx context.Context) (*protocol.StateResponse, error) {
	var resp protocol.StateResponse
	if err := c.CallToolJSON(ctx, "mode_stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionArtifacts calls session_artifacts.
func (c *Client) SessionArtifacts(ctx context.Context) (*protocol.ArtifactListResponse, error) {
	var resp protocol.ArtifactListResponse
	if err := c.CallToolJSON(ctx, "session_artifacts", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheClear calls cache_clear.
func (c *Client) CacheClear(ctx context.Context) (*protocol.CacheClearResponse, error) {
	var resp protocol.CacheClearResponse
	if err := c.CallToolJSON(ctx, "cache_clear", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preload calls artifact_preload.
func (c *Client) Preload(ctx context.Context) (*protocol.PreloadResponse, error) {
	var resp protocol.PreloadResponse
	if err := c.CallToolJSON(ctx, "artifact_preload", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DynamicSet calls dynamic_set. An empty key uses the server default.
func (c *Client) DynamicSet(ctx context.Context, key string, value interface{}, reset bool) (*protocol.DynamicSetResponse, error) {
	args := map[string]interface{}{}
	if key != "" {
		args["key"] = key
	}
	if value != nil {
		args["value"] = value
	}
	if reset {
		args["clear"] = true
	}

	var resp protocol.DynamicSetResponse
	if err := c.CallToolJSON(ctx, "dynamic_set", args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
