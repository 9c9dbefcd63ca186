package match

import (
	"log/slog"
	"regexp"
)

// Filter decides which URLs are subject to record/replay.
// Exclude patterns are checked first and always win. A URL that matches no pattern at
// all is allowed, even when include patterns are configured.
type Filter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFilter compiles the include and exclude lists as case-insensitive regular
// expressions. Patterns that fail to compile are logged and skipped.
func NewFilter(include, exclude []string, logger *slog.Logger) *Filter {
	return &Filter{
		include: compilePatterns("include", include, logger),
		exclude: compilePatterns("exclude", exclude, logger),
	}
}

func compilePatterns(kind string, patterns []string, logger *slog.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			if logger != nil {
				logger.Warn("match/filter: skipping invalid pattern", "kind", kind, "pattern", p, "error", err)
			}
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// ShouldRecord reports whether rawURL should be intercepted.
func (f *Filter) ShouldRecord(rawURL string) bool {
	if f == nil {
		return true
	}
	for _, re := range f.exclude {
		if re.MatchString(rawURL) {
			return false
		}
	}
	for _, re := range f.include {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return true
}

// ShouldRecord compiles the pattern lists and evaluates rawURL against them.
// Use NewFilter when the same lists are checked repeatedly.
func ShouldRecord(rawURL string, include, exclude []string) bool {
	return NewFilter(include, exclude, nil).ShouldRecord(rawURL)
}
