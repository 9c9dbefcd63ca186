package match

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// relativeBase resolves relative request URLs so they parse like absolute ones.
// Only the path and query of the result are used.
var relativeBase = &url.URL{Scheme: "http", Host: "localhost"}

var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

// Signature is the canonical identity of an intercepted request.
// It is built fresh for every call and never mutated afterwards.
type Signature struct {
	Method        string            // upper-cased
	URL           string            // as received
	NormalizedURL string            // query parameters sorted by key
	Pathname      string            // escaped path, "/" when empty
	QueryParams   map[string]string // last value wins for repeated keys
}

// CacheKey returns the in-memory cache key for the signature.
func (s Signature) CacheKey() string {
	return s.Method + ":" + s.NormalizedURL
}

// QueryPair is one decoded query parameter.
type QueryPair struct {
	Key   string
	Value string
}

// ParsedURL is the single parse result shared by every URL helper in mockrec.
type ParsedURL struct {
	Absolute bool
	Scheme   string
	Host     string
	Path     string      // escaped, "/" when empty
	Query    []QueryPair // original order
}

// TryParseURL parses raw as an absolute URL (when it starts with a scheme) or as a
// path-absolute relative URL. Anything else is reported as not parseable and the caller
// picks its own fallback.
func TryParseURL(raw string) (ParsedURL, bool) {
	if raw == "" || strings.ContainsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) {
		return ParsedURL{}, false
	}

	var u *url.URL
	absolute := schemeRe.MatchString(raw)
	if absolute {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			return ParsedURL{}, false
		}
		u = parsed
	} else {
		if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
			return ParsedURL{}, false
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return ParsedURL{}, false
		}
		u = relativeBase.ResolveReference(ref)
	}

	p := ParsedURL{
		Absolute: absolute,
		Scheme:   strings.ToLower(u.Scheme),
		Host:     u.Host,
		Path:     u.EscapedPath(),
		Query:    splitQuery(u.RawQuery),
	}
	if p.Path == "" {
		p.Path = "/"
	}
	return p, true
}

// splitQuery decodes a raw query string preserving pair order. A key or value with a
// malformed escape (for example "100%") is kept as raw text.
func splitQuery(rawQuery string) []QueryPair {
	if rawQuery == "" {
		return nil
	}
	var pairs []QueryPair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, QueryPair{Key: unescapeOrRaw(k), Value: unescapeOrRaw(v)})
	}
	return pairs
}

func unescapeOrRaw(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// SortedQuery returns the query pairs stably sorted by key.
func (p ParsedURL) SortedQuery() []QueryPair {
	sorted := make([]QueryPair, len(p.Query))
	copy(sorted, p.Query)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// EncodeQuery form-encodes pairs in the given order.
func EncodeQuery(pairs []QueryPair) string {
	var sb strings.Builder
	for i, qp := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(qp.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(qp.Value))
	}
	return sb.String()
}

// Normalize returns rawURL with its query parameters sorted by key, so URLs that only
// differ in parameter order normalize identically. Absolute inputs keep scheme and host,
// relative inputs become "/path?query". Unparseable input is returned unchanged.
func Normalize(rawURL string) string {
	p, ok := TryParseURL(rawURL)
	if !ok {
		return rawURL
	}

	var sb strings.Builder
	if p.Absolute {
		sb.WriteString(p.Scheme)
		sb.WriteString("://")
		sb.WriteString(p.Host)
	}
	sb.WriteString(p.Path)
	if len(p.Query) > 0 {
		sb.WriteByte('?')
		sb.WriteString(EncodeQuery(p.SortedQuery()))
	}
	return sb.String()
}

// ExtractPathname returns the escaped path of rawURL. Unparseable input falls back to
// everything before the first "?".
func ExtractPathname(rawURL string) string {
	if p, ok := TryParseURL(rawURL); ok {
		return p.Path
	}
	before, _, _ := strings.Cut(rawURL, "?")
	return before
}

// ExtractQueryParams returns the decoded query parameters of rawURL. Repeated keys keep the
// last value. Unparseable input yields an empty map.
func ExtractQueryParams(rawURL string) map[string]string {
	params := make(map[string]string)
	p, ok := TryParseURL(rawURL)
	if !ok {
		return params
	}
	for _, qp := range p.Query {
		params[qp.Key] = qp.Value
	}
	return params
}

// BuildSignature derives the request signature for method and rawURL.
func BuildSignature(method, rawURL string) Signature {
	return Signature{
		Method:        strings.ToUpper(method),
		URL:           rawURL,
		NormalizedURL: Normalize(rawURL),
		Pathname:      ExtractPathname(rawURL),
		QueryParams:   ExtractQueryParams(rawURL),
	}
}
