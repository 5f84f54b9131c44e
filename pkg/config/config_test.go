package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), again)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Engine.DebounceMs = 75
	cfg.Store.Backend = "sqlite"
	cfg.Ranking.Typo = 0.4
	cfg.Lexicon.Path = "/etc/wordmux/lexicon.yaml"
	require.NoError(t, SaveConfig(cfg, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestPartialRecovery(t *testing.T) {
	path := writeFile(t, `
[server]
max_limit = "lots"
min_prefix = 2

[engine]
debounce_ms = 80
fallback_score = 7
enable_search = false

[ranking]
typo = 0.3

[store]
backend = "sqlite"
path = "/tmp/state.db"

[lexicon]
path = "custom.yaml"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Server.MaxLimit, cfg.Server.MaxLimit, "bad values keep the default")
	assert.Equal(t, 2, cfg.Server.MinPrefix)
	assert.Equal(t, 80, cfg.Engine.DebounceMs)
	assert.Equal(t, 7.0, cfg.Engine.FallbackScore)
	assert.False(t, cfg.Engine.EnableSearch)
	assert.Equal(t, 0.3, cfg.Ranking.Typo)
	assert.Equal(t, def.Ranking.Frequency, cfg.Ranking.Frequency)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/state.db", cfg.Store.Path)
	assert.Equal(t, "custom.yaml", cfg.Lexicon.Path)
	assert.Equal(t, def.Dict, cfg.Dict)
}

func TestUnparseableFallsBackToDefaults(t *testing.T) {
	path := writeFile(t, "[[[ not toml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigWithPriority(t *testing.T) {
	path := writeFile(t, "[cli]\ndefault_limit = 5\n")
	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 5, cfg.CLI.DefaultLimit)
}

func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.DebounceMs = 20
	cfg.Engine.SmartTimeoutMs = 250
	cfg.Server.EnableFilter = false
	cfg.Cache.TTLSeconds = 5

	ec := cfg.EngineOptions()
	assert.Equal(t, 20*time.Millisecond, ec.Debounce)
	assert.Equal(t, 100*time.Millisecond, ec.FastTimeout)
	assert.Equal(t, 250*time.Millisecond, ec.SmartTimeout)
	assert.False(t, ec.EnableFilter)
	assert.Equal(t, 5*time.Second, ec.CacheTTL)
	assert.Equal(t, 0.8, ec.Fuzzy.CorrectRatio)
	assert.Equal(t, cfg.Ranking, ec.Weights)
}

func TestRebuildConfigFile(t *testing.T) {
	path := writeFile(t, "[cli]\ndefault_limit = 5\n")
	got, err := RebuildConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().CLI.DefaultLimit, cfg.CLI.DefaultLimit)
}
