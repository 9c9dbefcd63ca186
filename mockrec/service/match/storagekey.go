package match

import (
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	// placeholderName is the file stem used when a pathname cleans to nothing.
	placeholderName = "index"
	// placeholderDir is the grouping directory used when no pathname segment qualifies.
	placeholderDir = "root"
	// queryHashLen is the number of base-36 characters kept from the query hash.
	queryHashLen = 6
	// groupingDepth is the number of pathname segments used for directory grouping.
	groupingDepth = 2

	artifactExt = ".json"
)

var (
	numericSegmentRe = regexp.MustCompile(`^\d+$`)
	unsafeNameRe     = regexp.MustCompile(`[^A-Za-z0-9_\-]`)
)

// cleanPathname turns a pathname into a file-name-safe token.
func cleanPathname(pathname string) string {
	cleaned := strings.TrimPrefix(pathname, "/")
	cleaned = strings.ReplaceAll(cleaned, "/", "_")
	cleaned = unsafeNameRe.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		return placeholderName
	}
	return cleaned
}

// canonicalQuery joins the parameters as key=value pairs sorted by key.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// QueryHash returns the short base-36 hash used to tell query variants of one path apart.
// It is a 32-bit multiplicative string hash over UTF-16 code units and is not collision
// free; the format is kept stable so existing artifact names keep resolving.
func QueryHash(params map[string]string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(canonicalQuery(params))) {
		h = h*31 + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	s := strconv.FormatInt(abs, 36)
	if len(s) > queryHashLen {
		s = s[:queryHashLen]
	}
	return s
}

// BuildKey returns the artifact file name for sig:
// <lowercased-method>_<cleaned-path>[_<query-hash>].json
func BuildKey(sig Signature) string {
	name := strings.ToLower(sig.Method) + "_" + cleanPathname(sig.Pathname)
	if len(sig.QueryParams) > 0 {
		name += "_" + QueryHash(sig.QueryParams)
	}
	return name + artifactExt
}

// BuildDirectory returns the grouping directory for sig, slash separated. Numeric segments
// are treated as resource ids and skipped; at most the first two remaining segments are
// kept.
func BuildDirectory(sig Signature) string {
	segments := make([]string, 0, groupingDepth)
	for _, seg := range strings.Split(sig.Pathname, "/") {
		if seg == "" || numericSegmentRe.MatchString(seg) {
			continue
		}
		// never let a segment such as ".." reach the file system
		seg = unsafeNameRe.ReplaceAllString(seg, "")
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
		if len(segments) == groupingDepth {
			break
		}
	}
	if len(segments) == 0 {
		return placeholderDir
	}
	return strings.Join(segments, "/")
}

// RelativePath returns the slash separated artifact path below the storage root.
func RelativePath(sig Signature) string {
	return path.Join(BuildDirectory(sig), BuildKey(sig))
}

// BuildPath returns the full artifact path for sig below root.
func BuildPath(root string, sig Signature) string {
	return filepath.Join(root, filepath.FromSlash(RelativePath(sig)))
}

// IsArtifactName reports whether name carries the artifact file extension.
func IsArtifactName(name string) bool {
	return strings.HasSuffix(name, artifactExt)
}
