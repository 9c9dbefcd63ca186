package cli

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance bounds the edit distance of a "did you mean" suggestion.
const maxSuggestionDistance = 3

// UnknownCommandError reports an unknown top-level command, suggesting the closest valid one.
func UnknownCommandError(unknown string, validCommands []string) error {
	return unknownError("command", unknown, validCommands)
}

// UnknownSubcommandError reports an unknown subcommand of group, suggesting the closest valid one.
func UnknownSubcommandError(group, unknown string, validCommands []string) error {
	return unknownError(group+" subcommand", unknown, validCommands)
}

func unknownError(kind, unknown string, valid []string) error {
	if best := findClosest(unknown, valid); best != "" {
		return fmt.Errorf("unknown %s: %s (did you mean %q?)", kind, unknown, best)
	}
	return fmt.Errorf("unknown %s: %s", kind, unknown)
}

// findClosest returns the candidate nearest to input, ignoring case, or "" when none is
// within maxSuggestionDistance. A candidate that input is a prefix of always qualifies.
func findClosest(input string, candidates []string) string {
	input = strings.ToLower(input)
	best, bestDist := "", maxSuggestionDistance+1
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(input, strings.ToLower(c))
		if len(input) >= 2 && strings.HasPrefix(strings.ToLower(c), input) {
			dist = min(dist, 1)
		}
		if dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}
