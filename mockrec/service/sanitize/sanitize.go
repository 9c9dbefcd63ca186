package sanitize

import (
	"log/slog"
	"maps"
	"net/url"
	"strings"

	"github.com/go-analyze/bulk"

	"github.com/go-appsec/mockrec/mockrec/service/match"
	"github.com/go-appsec/mockrec/mockrec/service/store"
)

const (
	DefaultMask        = "[REDACTED]"
	DefaultPlaceholder = "{{DYNAMIC}}"
)

// DefaultHeaders are the header names removed from persisted artifacts unless configured otherwise.
var DefaultHeaders = []string{
	"authorization",
	"proxy-authorization",
	"cookie",
	"set-cookie",
	"x-api-key",
	"x-auth-token",
	"x-csrf-token",
}

// sensitiveParams are the query parameter names whose values are never persisted.
var sensitiveParams = bulk.SliceToSet([]string{
	"token", "access_token", "api_key", "apikey", "auth", "key", "secret", "password", "pwd",
})

var cookieHeaders = bulk.SliceToSet([]string{"cookie", "set-cookie"})

// Options configures a Sanitizer.
type Options struct {
	Headers         []string // header names, matched case-insensitively
	Mask            string   // replaces masked values
	RemoveHeaders   bool     // drop listed headers instead of masking them
	SanitizeCookies bool     // mask cookie and set-cookie even when not listed

	SanitizePII bool
	PIIPatterns []PIIPattern // applied in order, see DefaultPIIPatterns

	// SensitiveBodyFields masks object values by key in request and response bodies,
	// independent of SanitizePII.
	SensitiveBodyFields []string

	DynamicPlaceholder string
	DynamicValues      *DynamicValues // tracked values replaced on save, may be nil
}

// DefaultOptions returns the options used when nothing is configured. PII sanitization is off.
func DefaultOptions() Options {
	return Options{
		Headers:            DefaultHeaders,
		Mask:               DefaultMask,
		SanitizeCookies:    true,
		PIIPatterns:        DefaultPIIPatterns(),
		DynamicPlaceholder: DefaultPlaceholder,
	}
}

// Sanitizer strips credentials and other sensitive values from recorded exchanges.
// It holds no mutable state besides the optional DynamicValues registry and is safe for concurrent use.
type Sanitizer struct {
	opts       Options
	headers    map[string]struct{}
	bodyFields map[string]struct{}
	pii        []compiledPattern
}

// New compiles opts into a Sanitizer. Invalid PII patterns are logged and skipped.
func New(opts Options, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Mask == "" {
		opts.Mask = DefaultMask
	}
	if opts.DynamicPlaceholder == "" {
		opts.DynamicPlaceholder = DefaultPlaceholder
	}

	s := &Sanitizer{
		opts:       opts,
		headers:    make(map[string]struct{}, len(opts.Headers)),
		bodyFields: make(map[string]struct{}, len(opts.SensitiveBodyFields)),
	}
	for _, h := range opts.Headers {
		s.headers[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	for _, f := range opts.SensitiveBodyFields {
		s.bodyFields[strings.ToLower(f)] = struct{}{}
	}
	s.pii = compilePatterns(opts.PIIPatterns, logger)
	return s
}

// Options returns the effective options.
func (s *Sanitizer) Options() Options {
	return s.opts
}

// SanitizeHeaders returns a copy of headers with every listed header dropped or masked.
// The original value of a listed header never appears in the result.
func (s *Sanitizer) SanitizeHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		if _, listed := s.headers[lower]; listed {
			if !s.opts.RemoveHeaders {
				out[name] = s.opts.Mask
			}
			continue
		}
		if _, cookie := cookieHeaders[lower]; cookie && s.opts.SanitizeCookies {
			out[name] = s.opts.Mask
			continue
		}
		out[name] = value
	}
	return out
}

// SanitizeURL masks the values of sensitive query parameters. Everything else in the URL,
// including parameter order, fragment and malformed escapes in other pairs, is kept as-is.
// Unparseable URLs are returned unchanged.
func (s *Sanitizer) SanitizeURL(rawURL string) string {
	if _, ok := match.TryParseURL(rawURL); !ok {
		return rawURL
	}

	base, rest, hasQuery := strings.Cut(rawURL, "?")
	if !hasQuery {
		return rawURL
	}
	query, fragment, hasFragment := strings.Cut(rest, "#")

	parts := strings.Split(query, "&")
	var changed bool
	for i, part := range parts {
		k, _, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		if !isSensitiveParam(key) {
			continue
		}
		parts[i] = k + "=" + url.QueryEscape(s.opts.Mask)
		changed = true
	}
	if !changed {
		return rawURL
	}

	result := base + "?" + strings.Join(parts, "&")
	if hasFragment {
		result += "#" + fragment
	}
	return result
}

// SanitizeQueryParams returns a copy of params with sensitive values masked.
func (s *Sanitizer) SanitizeQueryParams(params map[string]string) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		if isSensitiveParam(k) {
			v = s.opts.Mask
		}
		out[k] = v
	}
	return out
}

func isSensitiveParam(name string) bool {
	_, ok := sensitiveParams[strings.ToLower(name)]
	return ok
}

// SanitizeBody returns a sanitized deep copy of a decoded body. Values under sensitive field
// names are masked, and when PII sanitization is enabled every string is run through the
// PII patterns.
func (s *Sanitizer) SanitizeBody(body any) any {
	switch v := body.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if _, sensitive := s.bodyFields[strings.ToLower(k)]; sensitive && item != nil {
				out[k] = s.opts.Mask
				continue
			}
			out[k] = s.SanitizeBody(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.SanitizeBody(item)
		}
		return out
	case string:
		if s.opts.SanitizePII {
			return s.redactPII(v)
		}
		return v
	default:
		return body
	}
}

// SanitizeRecordedData returns a sanitized copy of a. Every stage runs on the copy before it
// is returned, so callers only ever see a fully sanitized artifact.
func (s *Sanitizer) SanitizeRecordedData(a *store.RecordedArtifact) *store.RecordedArtifact {
	if a == nil {
		return nil
	}

	var tracked map[string]any
	if s.opts.DynamicValues != nil {
		tracked = s.opts.DynamicValues.Snapshot()
	}
	placeholder := s.opts.DynamicPlaceholder

	out := *a
	out.URL = s.SanitizeURL(a.URL)
	out.QueryParams = s.SanitizeQueryParams(a.QueryParams)
	out.RequestHeaders = s.SanitizeHeaders(a.RequestHeaders)
	out.ResponseHeaders = s.SanitizeHeaders(a.ResponseHeaders)
	out.RequestBody = s.SanitizeBody(ApplyDynamicPlaceholders(a.RequestBody, tracked, placeholder))
	out.Response = s.SanitizeBody(ApplyDynamicPlaceholders(a.Response, tracked, placeholder))

	out.Metadata = make(map[string]any, len(a.Metadata)+1)
	maps.Copy(out.Metadata, a.Metadata)
	out.Metadata["sanitized"] = true
	return &out
}
