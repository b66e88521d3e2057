package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/codeplay/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CODEPLAY_LANGUAGE", "CODEPLAY_EXEC_DELAY", "CODEPLAY_SUGGEST_DELAY",
		"CODEPLAY_EXEC_TIMEOUT", "CODEPLAY_MAX_OUTPUT", "CODEPLAY_LOG_LEVEL",
		"CODEPLAY_DOWNLOAD_DIR", "CODEPLAY_GEMINI_API_KEY", "CODEPLAY_GEMINI_MODEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("CODEPLAY_DATA_DIR", dir)

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "codeplay.db"), c.DBPath)
	assert.Equal(t, filepath.Join(dir, "presets"), c.UserPresetDir)
	assert.Equal(t, []string{c.UserPresetDir, ".codeplay/presets"}, c.PresetDirs())
	assert.Equal(t, models.LangJavaScript, c.Language())
	assert.Equal(t, DefaultExecDelay, c.ExecDelay())
	assert.Equal(t, DefaultSuggestDelay, c.SuggestDelay())
	assert.Equal(t, DefaultExecTimeout, c.ExecTimeout())
	assert.Equal(t, DefaultMaxOutput, c.MaxOutput())
	assert.Equal(t, "info", c.LogLevel())
	assert.Equal(t, ".", c.DownloadDir())
	assert.Empty(t, c.GeminiAPIKey())
	assert.Equal(t, DefaultGeminiModel, c.GeminiModel())
}

func TestFileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("CODEPLAY_DATA_DIR", dir)

	file := `
language: lua
exec_delay: 250ms
exec_timeout: 2s
max_output: 1024
log_level: warn
gemini:
  api_key: from-file
  model: gemini-pro
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(file), 0644))

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, models.LangLua, c.Language())
	assert.Equal(t, 250*time.Millisecond, c.ExecDelay())
	assert.Equal(t, 2*time.Second, c.ExecTimeout())
	assert.Equal(t, 1024, c.MaxOutput())
	assert.Equal(t, "warn", c.LogLevel())
	assert.Equal(t, "from-file", c.GeminiAPIKey())
	assert.Equal(t, "gemini-pro", c.GeminiModel())

	t.Setenv("CODEPLAY_LANGUAGE", "ts")
	t.Setenv("CODEPLAY_EXEC_DELAY", "0")
	t.Setenv("CODEPLAY_MAX_OUTPUT", "2048")
	t.Setenv("CODEPLAY_GEMINI_API_KEY", "from-env")

	c, err = New()
	require.NoError(t, err)
	assert.Equal(t, models.LangTypeScript, c.Language())
	assert.Less(t, c.ExecDelay(), time.Duration(0), "zero disables the delay")
	assert.Equal(t, 2048, c.MaxOutput())
	assert.Equal(t, "from-env", c.GeminiAPIKey())
}

func TestMillisecondShorthand(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODEPLAY_DATA_DIR", t.TempDir())
	t.Setenv("CODEPLAY_SUGGEST_DELAY", "1500")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, c.SuggestDelay())
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODEPLAY_DATA_DIR", t.TempDir())
	t.Setenv("CODEPLAY_EXEC_TIMEOUT", "soon")
	t.Setenv("CODEPLAY_MAX_OUTPUT", "lots")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultExecTimeout, c.ExecTimeout())
	assert.Equal(t, DefaultMaxOutput, c.MaxOutput())
}

func TestBadConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("CODEPLAY_DATA_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("language: [oops"), 0644))

	_, err := New()
	require.Error(t, err)
}

func TestEnsureDataDir(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("CODEPLAY_DATA_DIR", dir)

	c, err := New()
	require.NoError(t, err)
	require.NoError(t, c.EnsureDataDir())
	assert.DirExists(t, c.UserPresetDir)
}
