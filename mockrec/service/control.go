package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/go-appsec/mockrec/mockrec/config"
	"github.com/go-appsec/mockrec/mockrec/protocol"
	"github.com/go-appsec/mockrec/mockrec/service/match"
	"github.com/go-appsec/mockrec/mockrec/service/recorder"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

// controlServer exposes the recorder and artifact store as MCP tools, plus /metrics.
type controlServer struct {
	server           *server.MCPServer
	sseServer        *server.SSEServer
	streamableServer *server.StreamableHTTPServer
	httpServer       *http.Server
	listener         net.Listener
	service          *Server
	logger           *slog.Logger
}

func newControlServer(svc *Server) *controlServer {
	mcpSrv := server.NewMCPServer("mockrec", config.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithInstructions(controlInstructions),
	)

	c := &controlServer{
		server:  mcpSrv,
		service: svc,
		logger:  svc.logger,
	}
	c.registerTools()
	return c
}

// Listen binds addr. Start serves on the bound listener.
func (c *controlServer) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	c.listener = listener
	return nil
}

func (c *controlServer) Start(metrics http.Handler) {
	addr := c.Addr()

	// SSE server for legacy clients
	c.sseServer = server.NewSSEServer(c.server,
		server.WithBaseURL("http://"+addr),
	)

	// Streamable HTTP server for modern clients
	c.streamableServer = server.NewStreamableHTTPServer(c.server,
		server.WithStateLess(true),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", c.streamableServer)
	mux.Handle("/sse", c.sseServer)
	mux.Handle("/sse/", c.sseServer)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	c.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := c.httpServer.Serve(c.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("control: server error", "error", err)
		}
	}()
}

func (c *controlServer) Addr() string {
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return ""
}

// Close stops the control server.
func (c *controlServer) Close(ctx context.Context) error {
	var errs []error

	// Streaming connections (SSE, MCP) never become idle, so Shutdown blocks.
	if c.httpServer != nil {
		shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := c.httpServer.Shutdown(shortCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			if closeErr := c.httpServer.Close(); closeErr != nil {
				errs = append(errs, closeErr)
			}
		} else if err != nil {
			errs = append(errs, err)
		}
	} else if c.listener != nil {
		errs = append(errs, c.listener.Close())
	}

	if c.sseServer != nil {
		if err := c.sseServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.streamableServer != nil {
		if err := c.streamableServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *controlServer) registerTools() {
	c.addModeTools()
	c.addArtifactTools()
	c.server.AddTool(c.dynamicSetTool(), c.handleDynamicSet)
}

func (c *controlServer) addModeTools() {
	c.server.AddTool(c.modeInitializeTool(), c.handleModeInitialize)
	c.server.AddTool(c.modeStopTool(), c.handleModeStop)
	c.server.AddTool(c.modeGetTool(), c.handleModeGet)
	c.server.AddTool(c.stateGetTool(), c.handleStateGet)
}

func (c *controlServer) addArtifactTools() {
	c.server.AddTool(c.artifactSaveTool(), c.handleArtifactSave)
	c.server.AddTool(c.artifactLoadTool(), c.handleArtifactLoad)
	c.server.AddTool(c.artifactExistsTool(), c.handleArtifactExists)
	c.server.AddTool(c.artifactListTool(), c.handleArtifactList)
	c.server.AddTool(c.artifactClearTool(), c.handleArtifactClear)
	c.server.AddTool(c.sessionArtifactsTool(), c.handleSessionArtifacts)
	c.server.AddTool(c.artifactPreloadTool(), c.handleArtifactPreload)
	c.server.AddTool(c.cacheClearTool(), c.handleCacheClear)
}

const controlInstructions = `mockrec records the HTTP traffic of a test run and replays it later.

Call mode_initialize with "record" before a run that should capture live responses, or
"replay" to serve stored artifacts. mode_stop ends the session; state_get reports counters.`

// =============================================================================
// Mode Tools
// =============================================================================

func (c *controlServer) modeInitializeTool() mcp.Tool {
	return mcp.NewTool("mode_initialize",
		mcp.WithDescription("Start a new session in the given mode and reset all counters."),
		mcp.WithString("mode", mcp.Required(), mcp.Description("record, replay (alias: mock) or passthrough")),
	)
}

func (c *controlServer) handleModeInitialize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("mode", "")
	if name == "" {
		return errorResult("mode is required"), nil
	}
	state := c.service.recorder.Initialize(recorder.ParseMode(name))
	return jsonResult(c.stateResponse(state))
}

func (c *controlServer) modeStopTool() mcp.Tool {
	return mcp.NewTool("mode_stop",
		mcp.WithDescription("Stop the current session. Calls pass through until the next mode_initialize; counters are kept."),
	)
}

func (c *controlServer) handleModeStop(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(c.stateResponse(c.service.recorder.Stop()))
}

func (c *controlServer) modeGetTool() mcp.Tool {
	return mcp.NewTool("mode_get",
		mcp.WithDescription("Return the effective mode (passthrough when no session is active)."),
	)
}

func (c *controlServer) handleModeGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(protocol.ModeResponse{Mode: c.service.recorder.Mode().String()})
}

func (c *controlServer) stateGetTool() mcp.Tool {
	return mcp.NewTool("state_get",
		mcp.WithDescription("Return the session state and interception counters."),
	)
}

func (c *controlServer) handleStateGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(c.stateResponse(c.service.recorder.State()))
}

func (c *controlServer) stateResponse(state recorder.State) protocol.StateResponse {
	return protocol.StateResponse{
		Mode:         state.Mode.String(),
		Active:       state.Active,
		IsRecording:  state.IsRecording,
		IsReplaying:  state.IsReplaying,
		SessionID:    state.SessionID,
		StartedAt:    state.StartedAt,
		AutoFallback: c.service.cfg.AutoFallbackEnabled(),
		MockDir:      c.service.artifacts.Root(),
		CacheEntries: c.service.artifacts.CacheLen(),
		Counters: protocol.Counters{
			Intercepted: state.Counters.Intercepted,
			Recorded:    state.Counters.Recorded,
			Replayed:    state.Counters.Replayed,
			Missed:      state.Counters.Missed,
		},
	}
}

// =============================================================================
// Artifact Tools
// =============================================================================

func (c *controlServer) artifactSaveTool() mcp.Tool {
	return mcp.NewTool("artifact_save",
		mcp.WithDescription("Sanitize and store one exchange as an artifact. Returns the artifact path."),
		mcp.WithString("method", mcp.Description("HTTP method (default: GET)")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Request URL, absolute or path-relative")),
		mcp.WithNumber("status", mcp.Description("Response status (default: 200)")),
		mcp.WithString("status_message", mcp.Description("Response reason phrase")),
		mcp.WithObject("request_headers", mcp.Description("Request headers as object: {\"Name\": \"Value\"}")),
		mcp.WithObject("response_headers", mcp.Description("Response headers as object: {\"Name\": \"Value\"}")),
		mcp.WithObject("request_body", mcp.Description("Request body, any JSON value")),
		mcp.WithObject("response", mcp.Description("Response body, any JSON value")),
		mcp.WithNumber("response_time_ms", mcp.Description("Recorded response time in milliseconds")),
	)
}

func (c *controlServer) handleArtifactSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := req.GetString("url", "")
	if rawURL == "" {
		return errorResult("url is required"), nil
	}
	args := req.GetArguments()

	capturedReq := store.CapturedRequest{
		Method:  req.GetString("method", http.MethodGet),
		URL:     rawURL,
		Headers: stringMap(args["request_headers"]),
		Body:    args["request_body"],
	}
	capturedResp := store.CapturedResponse{
		Status:        req.GetInt("status", http.StatusOK),
		StatusMessage: req.GetString("status_message", ""),
		Headers:       stringMap(args["response_headers"]),
		Body:          args["response"],
	}
	elapsed := time.Duration(req.GetInt("response_time_ms", 0)) * time.Millisecond

	path, err := c.service.artifacts.Save(capturedReq, capturedResp, elapsed)
	if err != nil {
		return errorResult("save failed: " + err.Error()), nil
	}
	return jsonResult(protocol.ArtifactSaveResponse{Path: path})
}

func (c *controlServer) artifactLoadTool() mcp.Tool {
	return mcp.NewTool("artifact_load",
		mcp.WithDescription("Load the artifact recorded for a method and URL."),
		mcp.WithString("method", mcp.Description("HTTP method (default: GET)")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Request URL")),
	)
}

func (c *controlServer) handleArtifactLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sig, errResult := signatureArg(req)
	if errResult != nil {
		return errResult, nil
	}

	resp := protocol.ArtifactLoadResponse{Path: c.service.artifacts.Path(sig)}
	if artifact, ok := c.service.artifacts.Load(sig); ok {
		b, err := json.Marshal(artifact)
		if err != nil {
			return errorResult("failed to encode artifact: " + err.Error()), nil
		}
		resp.Found = true
		resp.Artifact = b
	}
	return jsonResult(resp)
}

func (c *controlServer) artifactExistsTool() mcp.Tool {
	return mcp.NewTool("artifact_exists",
		mcp.WithDescription("Report whether an artifact is cached or stored for a method and URL."),
		mcp.WithString("method", mcp.Description("HTTP method (default: GET)")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Request URL")),
	)
}

func (c *controlServer) handleArtifactExists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sig, errResult := signatureArg(req)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(protocol.ArtifactExistsResponse{
		Exists: c.service.artifacts.Exists(sig),
		Path:   c.service.artifacts.Path(sig),
	})
}

func (c *controlServer) artifactListTool() mcp.Tool {
	return mcp.NewTool("artifact_list",
		mcp.WithDescription("List every stored artifact, relative to the mock directory."),
	)
}

func (c *controlServer) handleArtifactList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := c.service.artifacts.List()
	if err != nil {
		return errorResult("list failed: " + err.Error()), nil
	}
	return jsonResult(protocol.ArtifactListResponse{Root: c.service.artifacts.Root(), Artifacts: paths})
}

func (c *controlServer) artifactClearTool() mcp.Tool {
	return mcp.NewTool("artifact_clear",
		mcp.WithDescription("Delete every stored artifact and empty the cache."),
	)
}

func (c *controlServer) handleArtifactClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := c.service.artifacts.List()
	if err != nil {
		c.logger.Warn("control/clear: listing before clear failed", "error", err)
	}
	if err := c.service.artifacts.ClearAll(); err != nil {
		return errorResult("clear failed: " + err.Error()), nil
	}
	return jsonResult(protocol.ArtifactClearResponse{Root: c.service.artifacts.Root(), Removed: len(paths)})
}

func (c *controlServer) sessionArtifactsTool() mcp.Tool {
	return mcp.NewTool("session_artifacts",
		mcp.WithDescription("List the artifact paths written by this process, in save order."),
	)
}

func (c *controlServer) handleSessionArtifacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(protocol.ArtifactListResponse{
		Root:      c.service.artifacts.Root(),
		Artifacts: c.service.artifacts.SessionRecorded(),
	})
}

func (c *controlServer) artifactPreloadTool() mcp.Tool {
	return mcp.NewTool("artifact_preload",
		mcp.WithDescription("Read every stored artifact into the cache. Unreadable files are skipped."),
	)
}

func (c *controlServer) handleArtifactPreload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loaded, err := c.service.artifacts.Preload()
	if err != nil {
		return errorResult("preload failed: " + err.Error()), nil
	}
	return jsonResult(protocol.PreloadResponse{Loaded: loaded, CacheEntries: c.service.artifacts.CacheLen()})
}

func (c *controlServer) cacheClearTool() mcp.Tool {
	return mcp.NewTool("cache_clear",
		mcp.WithDescription("Drop every cached artifact. Stored files are untouched."),
	)
}

func (c *controlServer) handleCacheClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cleared := c.service.artifacts.CacheLen()
	c.service.artifacts.ClearCache()
	return jsonResult(protocol.CacheClearResponse{Cleared: cleared})
}

// =============================================================================
// Dynamic Values
// =============================================================================

func (c *controlServer) dynamicSetTool() mcp.Tool {
	return mcp.NewTool("dynamic_set",
		mcp.WithDescription(`Track a run-specific value. Recorded bodies replace it with the dynamic placeholder;
replayed bodies resolve placeholders in a field of the same name, falling back to key "default".`),
		mcp.WithString("key", mcp.Description("Field name the value belongs to (default: \"default\")")),
		mcp.WithString("value", mcp.Description("Value to track; numbers and booleans may be passed as JSON")),
		mcp.WithBoolean("clear", mcp.Description("Remove every tracked value before setting (default: false)")),
	)
}

func (c *controlServer) handleDynamicSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dynamic := c.service.dynamic
	if req.GetBool("clear", false) {
		dynamic.Clear()
	}

	key := req.GetString("key", recorder.DefaultDynamicKey)
	value, ok := req.GetArguments()["value"]
	if ok && value != nil {
		dynamic.Set(key, value)
	} else if !req.GetBool("clear", false) {
		return errorResult("value is required unless clear is set"), nil
	}
	return jsonResult(protocol.DynamicSetResponse{Key: key, Tracked: dynamic.Len()})
}

// =============================================================================
// Helpers
// =============================================================================

func signatureArg(req mcp.CallToolRequest) (match.Signature, *mcp.CallToolResult) {
	rawURL := req.GetString("url", "")
	if rawURL == "" {
		return match.Signature{}, errorResult("url is required")
	}
	return match.BuildSignature(req.GetString("method", http.MethodGet), rawURL), nil
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch tv := val.(type) {
		case string:
			out[k] = tv
		case nil:
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResult("failed to marshal response: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}
