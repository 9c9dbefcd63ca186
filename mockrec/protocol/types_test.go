package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactListResponse_MarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("nil_artifacts", func(t *testing.T) {
		b, err := json.Marshal(ArtifactListResponse{Root: "mocks"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"root":"mocks","artifacts":[]}`, string(b))
	})

	t.Run("with_artifacts", func(t *testing.T) {
		b, err := json.Marshal(ArtifactListResponse{Root: "mocks", Artifacts: []string{"root/get_index_abc.json"}})
		require.NoError(t, err)

		var decoded ArtifactListResponse
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, []string{"root/get_index_abc.json"}, decoded.Artifacts)
	})
}

func TestStateResponseStartedAt(t *testing.T) {
	t.Parallel()

	t.Run("zero_omitted", func(t *testing.T) {
		b, err := json.Marshal(StateResponse{Mode: "passthrough"})
		require.NoError(t, err)

		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &m))
		assert.NotContains(t, m, "started_at")
		assert.NotContains(t, m, "session_id")
		assert.Contains(t, m, "counters")
	})

	t.Run("set", func(t *testing.T) {
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		b, err := json.Marshal(StateResponse{Mode: "record", StartedAt: at})
		require.NoError(t, err)

		var decoded StateResponse
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.True(t, at.Equal(decoded.StartedAt))
	})
}

func TestArtifactLoadResponseOmitsMissingArtifact(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(ArtifactLoadResponse{Path: "mocks/root/get_index_abc.json"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":false,"path":"mocks/root/get_index_abc.json"}`, string(b))
}
