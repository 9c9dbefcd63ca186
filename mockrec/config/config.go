package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-analyze/bulk"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/go-appsec/mockrec/mockrec/logging"
	"github.com/go-appsec/mockrec/mockrec/service/sanitize"
)

const (
	Version = "0.1.0"

	DefaultMockDir     = "cypress/mocks"
	DefaultLogLevel    = "info"
	DefaultProxyAddr   = "127.0.0.1:8089"
	DefaultControlAddr = "127.0.0.1:8090"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MOCKREC_"
)

// DefaultFileNames are looked up in the working directory when no --config is given.
var DefaultFileNames = []string{"mockrec.yaml", "mockrec.yml", "mockrec.json"}

// Config holds the mockrec configuration. Zero values are replaced by defaults on load.
type Config struct {
	Mode    string `json:"mode,omitempty" yaml:"mode,omitempty"`
	MockDir string `json:"mockDir" yaml:"mockDir"`

	IncludePatterns []string `json:"includePatterns,omitempty" yaml:"includePatterns,omitempty"`
	ExcludePatterns []string `json:"excludePatterns,omitempty" yaml:"excludePatterns,omitempty"`

	SanitizeHeaders        []string              `json:"sanitizeHeaders" yaml:"sanitizeHeaders"`
	RemoveSanitizedHeaders bool                  `json:"removeSanitizedHeaders,omitempty" yaml:"removeSanitizedHeaders,omitempty"`
	SanitizeCookies        *bool                 `json:"sanitizeCookies,omitempty" yaml:"sanitizeCookies,omitempty"`
	SanitizePII            bool                  `json:"sanitizePII,omitempty" yaml:"sanitizePII,omitempty"`
	PIIPatterns            []sanitize.PIIPattern `json:"piiPatterns,omitempty" yaml:"piiPatterns,omitempty"`
	SensitiveBodyFields    []string              `json:"sensitiveBodyFields,omitempty" yaml:"sensitiveBodyFields,omitempty"`
	Mask                   string                `json:"mask" yaml:"mask"`
	DynamicPlaceholder     string                `json:"dynamicPlaceholder" yaml:"dynamicPlaceholder"`

	AutoFallback    *bool  `json:"autoFallback,omitempty" yaml:"autoFallback,omitempty"`
	SimulateLatency bool   `json:"simulateLatency,omitempty" yaml:"simulateLatency,omitempty"`
	Preload         bool   `json:"preload,omitempty" yaml:"preload,omitempty"`
	LogLevel        string `json:"logLevel" yaml:"logLevel"`

	Upstream    string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	ProxyAddr   string `json:"proxyAddr" yaml:"proxyAddr"`
	ControlAddr string `json:"controlAddr" yaml:"controlAddr"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and parses config from the given path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
// If the file doesn't exist, returns os.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Find returns the first of DefaultFileNames present in dir, or "" when none exist.
func Find(dir string) string {
	for _, name := range DefaultFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Save writes the config to the given path atomically.
func (c *Config) Save(path string) error {
	if c == nil {
		return errors.New("config is nil")
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}

	// Write atomically by writing to temp file then renaming
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// applyDefaults fills in zero values with defaults
func (c *Config) applyDefaults() {
	if c.MockDir == "" {
		c.MockDir = DefaultMockDir
	}
	if c.SanitizeHeaders == nil {
		c.SanitizeHeaders = append([]string(nil), sanitize.DefaultHeaders...)
	}
	if c.Mask == "" {
		c.Mask = sanitize.DefaultMask
	}
	if c.DynamicPlaceholder == "" {
		c.DynamicPlaceholder = sanitize.DefaultPlaceholder
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ProxyAddr == "" {
		c.ProxyAddr = DefaultProxyAddr
	}
	if c.ControlAddr == "" {
		c.ControlAddr = DefaultControlAddr
	}
}

// AutoFallbackEnabled reports the effective auto-fallback setting, which defaults to on.
func (c *Config) AutoFallbackEnabled() bool {
	return c.AutoFallback == nil || *c.AutoFallback
}

// SanitizerOptions converts the sanitization settings into sanitize.Options.
// DynamicValues is left for the caller to attach.
func (c *Config) SanitizerOptions() sanitize.Options {
	opts := sanitize.DefaultOptions()
	opts.Headers = c.SanitizeHeaders
	opts.Mask = c.Mask
	opts.RemoveHeaders = c.RemoveSanitizedHeaders
	if c.SanitizeCookies != nil {
		opts.SanitizeCookies = *c.SanitizeCookies
	}
	opts.SanitizePII = c.SanitizePII
	if len(c.PIIPatterns) > 0 {
		opts.PIIPatterns = c.PIIPatterns
	}
	opts.SensitiveBodyFields = c.SensitiveBodyFields
	opts.DynamicPlaceholder = c.DynamicPlaceholder
	return opts
}

// Validate reports configuration errors that must stop startup.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.MockDir) == "" {
		errs = append(errs, errors.New("mockDir must not be empty"))
	}
	if c.Upstream != "" {
		if u, err := url.Parse(c.Upstream); err != nil {
			errs = append(errs, fmt.Errorf("invalid upstream: %w", err))
		} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid upstream %q: want http(s)://host[:port][/path]", c.Upstream))
		}
	}
	return errors.Join(errs...)
}

// LoadEnv reads the given .env files into the process environment without overriding
// variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays MOCKREC_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	var errs []error
	boolVar := func(name string, set func(bool)) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			set(b)
		}
	}

	if v, ok := get("MODE"); ok {
		c.Mode = v
	}
	if v, ok := get("MOCK_DIR"); ok {
		c.MockDir = v
	}
	if v, ok := get("INCLUDE_PATTERNS"); ok {
		c.IncludePatterns = splitPatterns(v)
	}
	if v, ok := get("EXCLUDE_PATTERNS"); ok {
		c.ExcludePatterns = splitPatterns(v)
	}
	if v, ok := get("SANITIZE_HEADERS"); ok {
		c.SanitizeHeaders = splitList(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("DYNAMIC_PLACEHOLDER"); ok {
		c.DynamicPlaceholder = v
	}
	if v, ok := get("UPSTREAM"); ok {
		c.Upstream = v
	}
	if v, ok := get("PROXY_ADDR"); ok {
		c.ProxyAddr = v
	}
	if v, ok := get("CONTROL_ADDR"); ok {
		c.ControlAddr = v
	}
	boolVar("AUTO_FALLBACK", func(b bool) { c.AutoFallback = &b })
	boolVar("SIMULATE_LATENCY", func(b bool) { c.SimulateLatency = b })
	boolVar("SANITIZE_PII", func(b bool) { c.SanitizePII = b })
	boolVar("PRELOAD", func(b bool) { c.Preload = b })

	return errors.Join(errs...)
}

// splitList splits a comma separated list, dropping blank entries.
func splitList(s string) []string {
	return trimNonEmpty(strings.Split(s, ","))
}

// patternSeparator separates regular expressions in MOCKREC_*_PATTERNS. Commas are valid
// inside a pattern (`\d{1,3}`), so patterns are split on newlines or ";;" instead.
const patternSeparator = ";;"

// splitPatterns splits a pattern list on newlines and patternSeparator, dropping blank entries.
func splitPatterns(s string) []string {
	return trimNonEmpty(strings.Split(strings.ReplaceAll(s, patternSeparator, "\n"), "\n"))
}

func trimNonEmpty(parts []string) []string {
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return bulk.SliceFilterInPlace(func(p string) bool { return p != "" }, parts)
}
