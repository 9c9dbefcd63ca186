package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-appsec/mockrec/mockrec/config"
	"github.com/go-appsec/mockrec/mockrec/service/match"
	"github.com/go-appsec/mockrec/mockrec/service/proxy"
	"github.com/go-appsec/mockrec/mockrec/service/recorder"
	"github.com/go-appsec/mockrec/mockrec/service/sanitize"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

const shutdownTimeout = 10 * time.Second

// Options are the runtime choices that are not part of the configuration file.
type Options struct {
	Ephemeral bool // artifacts live in memory and vanish on exit
}

// Server runs the intercepting proxy and the control server for one mock directory.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	dynamic   *sanitize.DynamicValues
	artifacts *store.ArtifactStore
	recorder  *recorder.Recorder
	proxy     *proxy.Server
	control   *controlServer
	metrics   *prometheus.Registry

	started    chan struct{}
	startedAt  time.Time
	shutdownCh chan struct{}
}

// NewServer validates cfg, prepares the storage root and binds both listeners.
func NewServer(cfg *config.Config, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var storage store.Storage
	if opts.Ephemeral {
		storage = store.NewMemStorage()
	} else {
		if err := store.CheckWritable(cfg.MockDir); err != nil {
			return nil, fmt.Errorf("mock directory not writable: %w", err)
		}
		storage = store.NewFileStorage(cfg.MockDir)
	}

	dynamic := sanitize.NewDynamicValues()
	sanitizerOpts := cfg.SanitizerOptions()
	sanitizerOpts.DynamicValues = dynamic
	artifacts := store.NewArtifactStore(cfg.MockDir, storage, sanitize.New(sanitizerOpts, logger), logger)

	rec := recorder.New(artifacts, recorder.Options{
		Filter:             match.NewFilter(cfg.IncludePatterns, cfg.ExcludePatterns, logger),
		AutoFallback:       cfg.AutoFallbackEnabled(),
		DynamicValues:      dynamic,
		DynamicPlaceholder: cfg.DynamicPlaceholder,
	}, logger)

	var upstream *url.URL
	if cfg.Upstream != "" {
		u, err := url.Parse(cfg.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream: %w", err)
		}
		upstream = u
	}
	proxySrv, err := proxy.NewServer(proxy.Config{
		Addr:            cfg.ProxyAddr,
		Upstream:        upstream,
		SimulateLatency: cfg.SimulateLatency,
	}, rec, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		dynamic:    dynamic,
		artifacts:  artifacts,
		recorder:   rec,
		proxy:      proxySrv,
		started:    make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
	s.control = newControlServer(s)
	if err := s.control.Listen(cfg.ControlAddr); err != nil {
		_ = proxySrv.Shutdown(context.Background())
		return nil, err
	}
	return s, nil
}

// Recorder returns the recorder the proxy routes through.
func (s *Server) Recorder() *recorder.Recorder {
	return s.recorder
}

// Artifacts returns the artifact store.
func (s *Server) Artifacts() *store.ArtifactStore {
	return s.artifacts
}

func (s *Server) ProxyAddr() string {
	return s.proxy.Addr()
}

func (s *Server) ControlAddr() string {
	return s.control.Addr()
}

// WaitTillStarted blocks until the server has started.
func (s *Server) WaitTillStarted() {
	<-s.started
}

// Run serves until ctx is done, a signal arrives, or RequestShutdown is called.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("service: starting", "version", config.Version, "mock_dir", s.cfg.MockDir)

	markStarted := sync.OnceFunc(func() { close(s.started) })
	defer markStarted()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if s.cfg.Preload {
		if _, err := s.artifacts.Preload(); err != nil {
			s.logger.Warn("service: preload failed", "error", err)
		}
	}
	if s.cfg.Mode != "" {
		s.recorder.Initialize(recorder.ParseMode(s.cfg.Mode))
	}

	s.startedAt = time.Now()
	s.metrics = newMetricsRegistry(s.recorder, s.artifacts, s.dynamic, s.startedAt)

	proxyErr := make(chan error, 1)
	go func() { proxyErr <- s.proxy.Serve() }()
	if err := s.proxy.WaitReady(ctx); err != nil {
		return errors.Join(err, s.shutdown())
	}
	s.control.Start(metricsHandler(s.metrics))

	markStarted()
	s.logger.Info("service: listening",
		"proxy", "http://"+s.proxy.Addr(),
		"mcp", "http://"+s.control.Addr()+"/mcp",
		"metrics", "http://"+s.control.Addr()+"/metrics")

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("service: context cancelled, initiating shutdown")
	case sig := <-sigCh:
		s.logger.Info("service: received signal, initiating shutdown", "signal", sig.String())
	case <-s.shutdownCh:
		s.logger.Info("service: shutdown requested")
	case err := <-proxyErr:
		if err != nil {
			runErr = fmt.Errorf("proxy stopped: %w", err)
		}
	}

	return errors.Join(runErr, s.shutdown())
}

// RequestShutdown initiates server shutdown.
func (s *Server) RequestShutdown() {
	select {
	case <-s.shutdownCh:
		// Already shutting down
	default:
		close(s.shutdownCh)
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	state := s.recorder.Stop()
	err := errors.Join(s.proxy.Shutdown(ctx), s.control.Close(ctx))
	s.logger.Info("service: stopped",
		"recorded", state.Counters.Recorded,
		"replayed", state.Counters.Replayed,
		"session_artifacts", len(s.artifacts.SessionRecorded()))
	return err
}
