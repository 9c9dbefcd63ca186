package sanitize

import (
	"log/slog"
	"regexp"
	"strings"
)

// PIIPattern is one regex and the text that replaces each match. Replacement may reference
// capture groups using regexp.Expand syntax.
type PIIPattern struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
}

// DefaultPIIPatterns returns the built-in patterns. Cards are matched before phone numbers
// so card digits are never partially reported as a phone.
func DefaultPIIPatterns() []PIIPattern {
	return []PIIPattern{
		{Pattern: `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`, Replacement: "[EMAIL]"},
		{Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "[SSN]"},
		{Pattern: `\b(?:\d{4}[ -]?){3}\d{4}\b`, Replacement: "[CARD]"},
		{Pattern: `(?:\+\d{1,2}[ .\-]?)?(?:\(\d{3}\)|\b\d{3})[ .\-]?\d{3}[ .\-]\d{4}\b`, Replacement: "[PHONE]"},
	}
}

type compiledPattern struct {
	re          *regexp.Regexp
	replacement string
}

func compilePatterns(patterns []PIIPattern, logger *slog.Logger) []compiledPattern {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			logger.Warn("sanitize/pii: skipping invalid pattern", "pattern", p.Pattern, "error", err)
			continue
		}
		compiled = append(compiled, compiledPattern{re: re, replacement: p.Replacement})
	}
	return compiled
}

// segment is a piece of a string under redaction. Protected segments hold replacement
// text and are not scanned by later patterns.
type segment struct {
	text      string
	protected bool
}

func (s *Sanitizer) redactPII(value string) string {
	if len(s.pii) == 0 || value == "" {
		return value
	}

	segments := []segment{{text: value}}
	var changed bool
	for _, p := range s.pii {
		next := make([]segment, 0, len(segments))
		for _, seg := range segments {
			if seg.protected {
				next = append(next, seg)
				continue
			}
			matches := p.re.FindAllStringSubmatchIndex(seg.text, -1)
			last := 0
			for _, m := range matches {
				if m[0] == m[1] {
					continue // empty match
				}
				if m[0] > last {
					next = append(next, segment{text: seg.text[last:m[0]]})
				}
				repl := p.re.ExpandString(nil, p.replacement, seg.text, m)
				next = append(next, segment{text: string(repl), protected: true})
				last = m[1]
				changed = true
			}
			if last < len(seg.text) {
				next = append(next, segment{text: seg.text[last:]})
			}
		}
		segments = next
	}
	if !changed {
		return value
	}

	var sb strings.Builder
	sb.Grow(len(value))
	for _, seg := range segments {
		sb.WriteString(seg.text)
	}
	return sb.String()
}
