package recorder

import (
	"strings"
)

// Mode selects how intercepted calls are handled.
type Mode int

const (
	ModePassthrough Mode = iota
	ModeRecord
	ModeReplay
)

func (m Mode) String() string {
	switch m {
	case ModeRecord:
		return "record"
	case ModeReplay:
		return "replay"
	default:
		return "passthrough"
	}
}

// ParseMode maps a configured mode name to a Mode. "record" selects recording, "replay" and
// "mock" select replaying, and any other value selects passthrough.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "record":
		return ModeRecord
	case "replay", "mock":
		return ModeReplay
	default:
		return ModePassthrough
	}
}
