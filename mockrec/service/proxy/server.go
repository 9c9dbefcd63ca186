package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"github.com/go-appsec/mockrec/mockrec/service/recorder"
)

// hopHeaders apply to a single connection and are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Config configures the intercepting proxy.
type Config struct {
	Addr            string   // listen address, e.g. "127.0.0.1:8089"
	Upstream        *url.URL // target for origin-form requests; nil allows only absolute-form
	SimulateLatency bool
	// Transport performs the real calls. NewUpstreamTransport is used when nil.
	Transport http.RoundTripper
}

// Server is an HTTP proxy that routes every request through a Recorder. Absolute-form
// requests are handled as a forward proxy; origin-form requests are sent to the upstream.
type Server struct {
	listener   net.Listener
	addr       string
	upstream   *url.URL
	transport  *recorder.Transport
	httpServer *http.Server
	logger     *slog.Logger

	running atomic.Bool
	closed  atomic.Bool
}

// NewUpstreamTransport returns the transport used for real calls, with HTTP/2 enabled for
// TLS upstreams. Environment proxy settings are ignored so requests never loop back.
func NewUpstreamTransport() (*http.Transport, error) {
	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(t); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return t, nil
}

// NewServer binds the listener immediately so Addr is usable before Serve.
func NewServer(cfg Config, rec *recorder.Recorder, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	next := cfg.Transport
	if next == nil {
		t, err := NewUpstreamTransport()
		if err != nil {
			return nil, err
		}
		next = t
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	s := &Server{
		listener: listener,
		addr:     listener.Addr().String(),
		upstream: cfg.Upstream,
		transport: &recorder.Transport{
			Recorder:        rec,
			Next:            next,
			SimulateLatency: cfg.SimulateLatency,
		},
		logger: logger,
	}
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s, nil
}

// Addr returns the listener address (e.g. "127.0.0.1:12345").
func (s *Server) Addr() string {
	return s.addr
}

// WaitReady blocks until Serve has started accepting.
func (s *Server) WaitReady(ctx context.Context) error {
	for !s.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			runtime.Gosched()
		}
	}
	return nil
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve() error {
	s.running.Store(true)
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting and waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !s.running.Load() {
		return s.listener.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		http.Error(w, "mockrec: CONNECT tunnelling is not supported, send plain HTTP requests", http.StatusNotImplemented)
		return
	}

	target, err := s.resolveTarget(r)
	if err != nil {
		http.Error(w, "mockrec: "+err.Error(), http.StatusBadRequest)
		return
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "mockrec: "+err.Error(), http.StatusBadRequest)
		return
	}
	out.Header = r.Header.Clone()
	removeHopHeaders(out.Header)
	out.ContentLength = r.ContentLength
	if r.ContentLength == 0 {
		out.Body = http.NoBody
	}

	resp, err := s.transport.RoundTrip(out)
	if err != nil {
		if r.Context().Err() != nil {
			return // client went away
		}
		s.logger.Warn("proxy: upstream call failed", "method", r.Method, "url", target.String(), "error", err)
		http.Error(w, "mockrec: upstream error: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	header := w.Header()
	for name, values := range resp.Header {
		header[name] = values
	}
	removeHopHeaders(header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("proxy: response copy interrupted", "url", target.String(), "error", err)
	}
}

// resolveTarget returns the absolute URL a proxied request is sent to.
func (s *Server) resolveTarget(r *http.Request) (*url.URL, error) {
	if r.URL.IsAbs() {
		if r.URL.Host == "" {
			return nil, errors.New("absolute request URL without host")
		}
		target := *r.URL
		return &target, nil
	} else if s.upstream == nil {
		return nil, errors.New("origin-form request but no upstream configured; send absolute URLs or start with --upstream")
	}

	target := *s.upstream
	target.Path = joinPath(s.upstream.Path, r.URL.Path)
	target.RawPath = joinPath(s.upstream.EscapedPath(), r.URL.EscapedPath())
	target.RawQuery = r.URL.RawQuery
	return &target, nil
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case p == "" || p == "/":
		return base
	default:
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
	}
}

func removeHopHeaders(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}
