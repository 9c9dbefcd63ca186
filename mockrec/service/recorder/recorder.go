package recorder

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/go-appsec/mockrec/mockrec/service/ids"
	"github.com/go-appsec/mockrec/mockrec/service/match"
	"github.com/go-appsec/mockrec/mockrec/service/sanitize"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

// DefaultDynamicKey is the dynamic value used for placeholders with no field-specific value.
const DefaultDynamicKey = "default"

// OutcomeKind classifies how an intercepted call was completed.
type OutcomeKind int

const (
	// Forwarded calls reached the real destination (including auto-fallback in replay mode).
	Forwarded OutcomeKind = iota
	// Served calls were answered from a stored artifact.
	Served
	// Failed calls were answered with the missing-mock error response.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Served:
		return "served"
	case Failed:
		return "failed"
	default:
		return "forwarded"
	}
}

// Outcome is the result of one intercepted call. Response is always set.
type Outcome struct {
	Kind     OutcomeKind
	Response *http.Response
	Artifact *store.RecordedArtifact // Served only
	Path     string                  // artifact written for this call, if any
	SaveErr  error                   // persistence failure; the live response is still valid
	Reason   string                  // Failed only
}

// Options configures a Recorder.
type Options struct {
	Filter             *match.Filter
	AutoFallback       bool
	DynamicValues      *sanitize.DynamicValues // resolved into served bodies, may be nil
	DynamicPlaceholder string
	DynamicDefaultKey  string
}

// Counters are the per-session interception counts.
type Counters struct {
	Intercepted int64 `json:"intercepted"`
	Recorded    int64 `json:"recorded"`
	Replayed    int64 `json:"replayed"`
	Missed      int64 `json:"missed"`
}

// State is a read-only view of the recorder.
type State struct {
	Mode        Mode
	Active      bool
	IsRecording bool
	IsReplaying bool
	SessionID   string
	StartedAt   time.Time
	Counters    Counters
}

// Recorder owns the mode state machine and counters for one test session. Intercept may be
// called concurrently; counters are updated atomically and never across the forward call.
type Recorder struct {
	store  *store.ArtifactStore
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	mode      Mode
	active    bool
	sessionID string
	startedAt time.Time

	intercepted atomic.Int64
	recorded    atomic.Int64
	replayed    atomic.Int64
	missed      atomic.Int64
}

// New returns an inactive recorder. Until Initialize runs every call passes through.
func New(artifacts *store.ArtifactStore, opts Options, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.DynamicPlaceholder == "" {
		opts.DynamicPlaceholder = sanitize.DefaultPlaceholder
	}
	if opts.DynamicDefaultKey == "" {
		opts.DynamicDefaultKey = DefaultDynamicKey
	}
	return &Recorder{store: artifacts, opts: opts, logger: logger}
}

// Store returns the artifact store the recorder reads and writes.
func (r *Recorder) Store() *store.ArtifactStore {
	return r.store
}

// Initialize enters mode, starts a new session and resets all counters.
func (r *Recorder) Initialize(mode Mode) State {
	r.mu.Lock()
	r.mode = mode
	r.active = true
	r.sessionID = uuid.NewString()
	r.startedAt = time.Now()
	r.intercepted.Store(0)
	r.recorded.Store(0)
	r.replayed.Store(0)
	r.missed.Store(0)
	r.mu.Unlock()

	r.logger.Info("recorder/init: session started", "mode", mode.String(), "auto_fallback", r.opts.AutoFallback)
	return r.State()
}

// Stop deactivates the recorder. Counters are kept until the next Initialize.
func (r *Recorder) Stop() State {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()

	state := r.State()
	r.logger.Info("recorder/stop: session stopped",
		"intercepted", state.Counters.Intercepted,
		"recorded", state.Counters.Recorded,
		"replayed", state.Counters.Replayed)
	return state
}

// Mode returns the effective mode, which is passthrough while inactive.
func (r *Recorder) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.active {
		return ModePassthrough
	}
	return r.mode
}

func (r *Recorder) State() State {
	r.mu.RLock()
	mode, active := r.mode, r.active
	state := State{
		Active:    active,
		SessionID: r.sessionID,
		StartedAt: r.startedAt,
	}
	r.mu.RUnlock()

	if active {
		state.Mode = mode
	}
	state.IsRecording = state.Mode == ModeRecord
	state.IsReplaying = state.Mode == ModeReplay
	state.Counters = Counters{
		Intercepted: r.intercepted.Load(),
		Recorded:    r.recorded.Load(),
		Replayed:    r.replayed.Load(),
		Missed:      r.missed.Load(),
	}
	return state
}

// Intercept handles one outbound call according to the current mode. next is the real
// transport; awaiting it is the only blocking step. Transport errors and cancellation are
// returned without any record or replay counter update and without persisting anything.
func (r *Recorder) Intercept(ctx context.Context, req *http.Request, next http.RoundTripper) (*Outcome, error) {
	mode := r.Mode()
	if mode == ModePassthrough {
		return r.forward(ctx, req, next)
	}

	rawURL := req.URL.String()
	if !r.opts.Filter.ShouldRecord(rawURL) {
		return r.forward(ctx, req, next)
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.intercepted.Add(1)
	callID := ids.Generate(ids.DefaultLength)

	switch mode {
	case ModeRecord:
		return r.forwardAndRecord(ctx, req, next, callID)
	case ModeReplay:
		return r.replay(ctx, req, next, rawURL, callID)
	default:
		return r.forward(ctx, req, next)
	}
}

func (r *Recorder) forward(ctx context.Context, req *http.Request, next http.RoundTripper) (*Outcome, error) {
	resp, err := next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: Forwarded, Response: resp}, nil
}

func (r *Recorder) replay(ctx context.Context, req *http.Request, next http.RoundTripper, rawURL, callID string) (*Outcome, error) {
	sig := match.BuildSignature(req.Method, rawURL)
	if artifact, ok := r.store.Load(sig); ok {
		var values map[string]any
		if r.opts.DynamicValues != nil {
			values = r.opts.DynamicValues.Snapshot()
		}
		body := sanitize.ResolveDynamicPlaceholders(artifact.Response, values, r.opts.DynamicPlaceholder, r.opts.DynamicDefaultKey)
		resp, err := buildResponse(req, artifact, body)
		if err != nil {
			r.logger.Warn("recorder/replay: stored body not servable, treating as missing",
				"call", callID, "method", sig.Method, "url", rawURL, "error", err)
		} else {
			r.replayed.Add(1)
			r.logger.Debug("recorder/replay: served", "call", callID, "method", sig.Method, "url", rawURL, "status", artifact.Status)
			return &Outcome{Kind: Served, Response: resp, Artifact: artifact}, nil
		}
	}

	r.missed.Add(1)
	if r.opts.AutoFallback {
		r.logger.Info("recorder/replay: mock missing, recording live response", "call", callID, "method", sig.Method, "url", rawURL)
		return r.forwardAndRecord(ctx, req, next, callID)
	}

	r.logger.Warn("recorder/replay: mock missing", "call", callID, "method", sig.Method, "url", rawURL)
	return &Outcome{
		Kind:     Failed,
		Response: missResponse(req, sig.Method, rawURL),
		Reason:   "no recorded mock for " + sig.Method + " " + rawURL,
	}, nil
}

// forwardAndRecord forwards req, then persists a sanitized copy of the exchange. The live
// response handed back is byte-identical to what the destination sent.
func (r *Recorder) forwardAndRecord(ctx context.Context, req *http.Request, next http.RoundTripper, callID string) (*Outcome, error) {
	out := req.WithContext(ctx)
	reqBody, err := bufferRequestBody(out)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := next.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	respBody, err := bufferResponseBody(resp)
	if err != nil {
		return nil, err
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	capturedReq, capturedResp := captureExchange(out, reqBody, resp, respBody)
	outcome := &Outcome{Kind: Forwarded, Response: resp}
	path, err := r.store.Save(capturedReq, capturedResp, elapsed)
	if err != nil {
		r.logger.Error("recorder/record: save failed", "call", callID, "method", req.Method, "url", capturedReq.URL, "error", err)
		outcome.SaveErr = err
		return outcome, nil
	}

	r.recorded.Add(1)
	outcome.Path = path
	r.logger.Debug("recorder/record: saved", "call", callID, "path", path, "status", resp.StatusCode, "elapsed", elapsed)
	return outcome, nil
}
