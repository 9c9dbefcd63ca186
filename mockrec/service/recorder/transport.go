package recorder

import (
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that routes every request through a Recorder.
type Transport struct {
	Recorder *Recorder
	// Next performs real network calls. http.DefaultTransport is used when nil.
	Next http.RoundTripper
	// SimulateLatency delays served responses by their recorded response time.
	SimulateLatency bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}

	ctx := req.Context()
	outcome, err := t.Recorder.Intercept(ctx, req, next)
	if err != nil {
		return nil, err
	}

	if t.SimulateLatency && outcome.Kind == Served && outcome.Artifact.ResponseTime > 0 {
		timer := time.NewTimer(time.Duration(outcome.Artifact.ResponseTime) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			_ = outcome.Response.Body.Close()
			return nil, ctx.Err()
		}
	}
	return outcome.Response, nil
}
