package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-appsec/mockrec/mockrec/config"
)

func TestParseServeFlags(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		flags, err := ParseServeFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultMockDir, flags.MockDir)
		assert.Equal(t, []string{".env"}, flags.EnvFiles)
		assert.True(t, flags.AutoFallback)

		cfg := config.DefaultConfig()
		cfg.MockDir = "from-file"
		flags.Apply(cfg)
		assert.Equal(t, "from-file", cfg.MockDir, "unset flags must not override")
		assert.Nil(t, cfg.AutoFallback)
	})

	t.Run("explicit", func(t *testing.T) {
		flags, err := ParseServeFlags([]string{
			"--mode", "replay",
			"--mock-dir", "e2e/mocks",
			"--include", "/api/",
			"--include", "/graphql",
			"--auto-fallback=false",
			"--simulate-latency",
			"--upstream", "http://localhost:3000",
			"--ephemeral",
		})
		require.NoError(t, err)
		assert.True(t, flags.Ephemeral)

		cfg := config.DefaultConfig()
		flags.Apply(cfg)
		assert.Equal(t, "replay", cfg.Mode)
		assert.Equal(t, "e2e/mocks", cfg.MockDir)
		assert.Equal(t, []string{"/api/", "/graphql"}, cfg.IncludePatterns)
		assert.False(t, cfg.AutoFallbackEnabled())
		assert.True(t, cfg.SimulateLatency)
		assert.Equal(t, "http://localhost:3000", cfg.Upstream)
	})

	t.Run("invalid_mode", func(t *testing.T) {
		_, err := ParseServeFlags([]string{"--mode", "recrod"})
		assert.ErrorContains(t, err, "invalid --mode")
	})

	t.Run("mode_aliases", func(t *testing.T) {
		for _, mode := range []string{"record", "replay", "mock", "passthrough", "PASSTHROUGH"} {
			_, err := ParseServeFlags([]string{"--mode", mode})
			assert.NoError(t, err, mode)
		}
	})

	t.Run("positional_rejected", func(t *testing.T) {
		_, err := ParseServeFlags([]string{"extra"})
		assert.Error(t, err)
	})

	t.Run("unknown_flag", func(t *testing.T) {
		_, err := ParseServeFlags([]string{"--nope"})
		assert.Error(t, err)
	})
}

func TestResolveConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mockrec.yaml"),
		[]byte("mockDir: from-file\nlogLevel: warn\nupstream: http://file.example\n"), 0644))

	t.Setenv("MOCKREC_LOG_LEVEL", "debug")
	t.Setenv("MOCKREC_UPSTREAM", "http://env.example")

	flags, err := ParseServeFlags([]string{"--upstream", "http://flag.example", "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	cfg, err := ResolveConfig(flags, dir)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.MockDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://flag.example", cfg.Upstream)
}

func TestResolveConfigInvalid(t *testing.T) {
	t.Parallel()

	flags, err := ParseServeFlags([]string{"--log-level", "shouty", "--env-file", ""})
	require.NoError(t, err)

	_, err = ResolveConfig(flags, t.TempDir())
	assert.ErrorContains(t, err, "invalid log level")
}
