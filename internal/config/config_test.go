package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 6, cfg.DefaultMaxTurns)
	assert.Equal(t, 500, cfg.DefaultTokenLimit)
	assert.Equal(t, 20, cfg.FactcheckMaxPerDebate)
	assert.NotEmpty(t, cfg.ClaudeModel)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AGORACORE_MAX_TURNS", "10")
	t.Setenv("AGORACORE_CLAUDE_MODEL", "claude-opus-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.DefaultMaxTurns)
	assert.Equal(t, "claude-opus-test", cfg.ClaudeModel)
}

func TestLoad_FileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "default_max_turns: 12\nclaude_model: claude-file-test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.DefaultMaxTurns)
	assert.Equal(t, "claude-file-test", cfg.ClaudeModel)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default().DefaultMaxTurns, cfg.DefaultMaxTurns)
}
