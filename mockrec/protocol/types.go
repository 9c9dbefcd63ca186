package protocol

import (
	"encoding/json"
	"time"
)

// =============================================================================
// Recorder State Types
// =============================================================================

// Counters are the per-session interception counts.
type Counters struct {
	Intercepted int64 `json:"intercepted"`
	Recorded    int64 `json:"recorded"`
	Replayed    int64 `json:"replayed"`
	Missed      int64 `json:"missed"`
}

// StateResponse is the response for state_get, mode_initialize and mode_stop.
type StateResponse struct {
	Mode         string    `json:"mode"`
	Active       bool      `json:"active"`
	IsRecording  bool      `json:"is_recording"`
	IsReplaying  bool      `json:"is_replaying"`
	SessionID    string    `json:"session_id,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	AutoFallback bool      `json:"auto_fallback"`
	MockDir      string    `json:"mock_dir"`
	CacheEntries int       `json:"cache_entries"`
	Counters     Counters  `json:"counters"`
}

// ModeResponse is the response for mode_get.
type ModeResponse struct {
	Mode string `json:"mode"`
}

// =============================================================================
// Artifact Types
// =============================================================================

// ArtifactSaveResponse is the response for artifact_save.
type ArtifactSaveResponse struct {
	Path string `json:"path"`
}

// ArtifactLoadResponse is the response for artifact_load. Artifact holds the
// recorded artifact JSON and is omitted when Found is false.
type ArtifactLoadResponse struct {
	Found    bool            `json:"found"`
	Path     string          `json:"path"`
	Artifact json.RawMessage `json:"artifact,omitempty"`
}

// ArtifactExistsResponse is the response for artifact_exists.
type ArtifactExistsResponse struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path"`
}

// ArtifactListResponse is the response for artifact_list and session_artifacts.
type ArtifactListResponse struct {
	Root      string   `json:"root"`
	Artifacts []string `json:"artifacts"`
}

// MarshalJSON always emits artifacts as an array.
func (r ArtifactListResponse) MarshalJSON() ([]byte, error) {
	type alias ArtifactListResponse
	if r.Artifacts == nil {
		r.Artifacts = []string{}
	}
	return json.Marshal(alias(r))
}

// ArtifactClearResponse is the response for artifact_clear.
type ArtifactClearResponse struct {
	Root    string `json:"root"`
	Removed int    `json:"removed"`
}

// PreloadResponse is the response for artifact_preload.
type PreloadResponse struct {
	Loaded       int `json:"loaded"`
	CacheEntries int `json:"cache_entries"`
}

// CacheClearResponse is the response for cache_clear.
type CacheClearResponse struct {
	Cleared int `json:"cleared"`
}

// DynamicSetResponse is the response for dynamic_set.
type DynamicSetResponse struct {
	Key     string `json:"key"`
	Tracked int    `json:"tracked"`
}
