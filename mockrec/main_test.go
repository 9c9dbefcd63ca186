package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("no_args", func(t *testing.T) {
		assert.Equal(t, 1, run(nil))
	})

	t.Run("version", func(t *testing.T) {
		assert.Equal(t, 0, run([]string{"version"}))
	})

	t.Run("help", func(t *testing.T) {
		assert.Equal(t, 0, run([]string{"help"}))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, 1, run([]string{"srve"}))
	})

	t.Run("serve_help", func(t *testing.T) {
		assert.Equal(t, 0, run([]string{"serve", "--help"}))
	})

	t.Run("serve_bad_mode", func(t *testing.T) {
		assert.Equal(t, 1, run([]string{"serve", "--mode", "bogus"}))
	})
}
