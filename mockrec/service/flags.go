package service

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/go-appsec/mockrec/mockrec/config"
	"github.com/go-appsec/mockrec/mockrec/service/recorder"
)

// ServeFlags holds flags for `mockrec serve`. Only flags given on the command line
// override the configuration file and environment.
type ServeFlags struct {
	ConfigPath string
	EnvFiles   []string
	Ephemeral  bool // keep artifacts in memory only

	Mode            string
	MockDir         string
	ProxyAddr       string
	ControlAddr     string
	Upstream        string
	LogLevel        string
	Include         []string
	Exclude         []string
	AutoFallback    bool
	SimulateLatency bool
	Preload         bool

	changed map[string]bool
}

// ParseServeFlags parses flags for `mockrec serve`.
func ParseServeFlags(args []string) (ServeFlags, error) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetInterspersed(true)
	var flags ServeFlags

	fs.StringVar(&flags.ConfigPath, "config", "", "config file (default: mockrec.yaml, mockrec.yml or mockrec.json in the working directory)")
	fs.StringSliceVar(&flags.EnvFiles, "env-file", []string{".env"}, ".env files loaded before MOCKREC_* variables are read")
	fs.BoolVar(&flags.Ephemeral, "ephemeral", false, "keep recorded artifacts in memory instead of the mock directory")
	fs.StringVar(&flags.Mode, "mode", "", "initial mode: record, replay or passthrough (default: inactive until mode_initialize)")
	fs.StringVar(&flags.MockDir, "mock-dir", config.DefaultMockDir, "artifact storage root")
	fs.StringVar(&flags.ProxyAddr, "proxy-addr", config.DefaultProxyAddr, "intercepting proxy listen address")
	fs.StringVar(&flags.ControlAddr, "control-addr", config.DefaultControlAddr, "MCP control and metrics listen address")
	fs.StringVar(&flags.Upstream, "upstream", "", "base URL for origin-form requests (reverse proxy mode)")
	fs.StringVar(&flags.LogLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	fs.StringArrayVar(&flags.Include, "include", nil, "URL regex to record (repeatable)")
	fs.StringArrayVar(&flags.Exclude, "exclude", nil, "URL regex never recorded (repeatable)")
	fs.BoolVar(&flags.AutoFallback, "auto-fallback", true, "record live responses for replay misses")
	fs.BoolVar(&flags.SimulateLatency, "simulate-latency", false, "delay replayed responses by their recorded response time")
	fs.BoolVar(&flags.Preload, "preload", false, "load every stored artifact into the cache at startup")

	if err := fs.Parse(args); err != nil {
		return flags, err
	} else if fs.NArg() > 0 {
		return flags, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if mode := strings.ToLower(strings.TrimSpace(flags.Mode)); mode != "" && mode != "passthrough" &&
		recorder.ParseMode(mode) == recorder.ModePassthrough {
		return flags, fmt.Errorf("invalid --mode value %q: must be record, replay or passthrough", flags.Mode)
	}

	flags.changed = make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) { flags.changed[f.Name] = true })
	return flags, nil
}

// Apply overlays explicitly set flags onto cfg.
func (f ServeFlags) Apply(cfg *config.Config) {
	set := func(name string) bool { return f.changed[name] }

	if set("mode") {
		cfg.Mode = f.Mode
	}
	if set("mock-dir") {
		cfg.MockDir = f.MockDir
	}
	if set("proxy-addr") {
		cfg.ProxyAddr = f.ProxyAddr
	}
	if set("control-addr") {
		cfg.ControlAddr = f.ControlAddr
	}
	if set("upstream") {
		cfg.Upstream = f.Upstream
	}
	if set("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if set("include") {
		cfg.IncludePatterns = f.Include
	}
	if set("exclude") {
		cfg.ExcludePatterns = f.Exclude
	}
	if set("auto-fallback") {
		fallback := f.AutoFallback
		cfg.AutoFallback = &fallback
	}
	if set("simulate-latency") {
		cfg.SimulateLatency = f.SimulateLatency
	}
	if set("preload") {
		cfg.Preload = f.Preload
	}
}

// ResolveConfig loads configuration with precedence defaults < file < env < flags.
func ResolveConfig(flags ServeFlags, workDir string) (*config.Config, error) {
	if err := config.LoadEnv(flags.EnvFiles...); err != nil {
		return nil, err
	}

	path := flags.ConfigPath
	if path == "" {
		path = config.Find(workDir)
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	flags.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
