/*
Package config manages the TOML config for wordmux.

A missing file is created with defaults. A file that does not decode cleanly
is recovered section by section, so one bad value only costs that key.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/engine"
	"github.com/bastiangx/wordmux/pkg/providers"
	"github.com/bastiangx/wordmux/pkg/rank"
)

const appName = "wordmux"

// Config holds the entire config structure
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Engine  EngineConfig  `toml:"engine"`
	Dict    DictConfig    `toml:"dict"`
	Cache   CacheConfig   `toml:"cache"`
	Store   StoreConfig   `toml:"store"`
	Ranking rank.Weights  `toml:"ranking"`
	Lexicon LexiconConfig `toml:"lexicon"`
	CLI     CliConfig     `toml:"cli"`
}

// ServerConfig has request limits for the IPC server.
type ServerConfig struct {
	MaxLimit     int  `toml:"max_limit"`
	MinPrefix    int  `toml:"min_prefix"`
	MaxPrefix    int  `toml:"max_prefix"`
	EnableFilter bool `toml:"enable_filter"`
}

// EngineConfig tunes the suggestion pipeline.
type EngineConfig struct {
	DebounceMs          int     `toml:"debounce_ms"`
	FastTimeoutMs       int     `toml:"fast_timeout_ms"`
	SmartTimeoutMs      int     `toml:"smart_timeout_ms"`
	FilterMinCandidates int     `toml:"filter_min_candidates"`
	FilterMinWord       int     `toml:"filter_min_word"`
	FallbackMinPrefix   int     `toml:"fallback_min_prefix"`
	FallbackScore       float64 `toml:"fallback_score"`
	RateLimitPerMinute  int     `toml:"rate_limit_per_minute"`
	CorrectionMinLen    int     `toml:"correction_min_len"`
	CorrectionRatio     float64 `toml:"correction_ratio"`
	FuzzyWords          int     `toml:"fuzzy_words"`
	EnableSearch        bool    `toml:"enable_search"`
}

// DictConfig holds dictionary options.
type DictConfig struct {
	Path             string `toml:"path"`
	Watch            bool   `toml:"watch"`
	MaxWords         int    `toml:"max_words"`
	MinFreqThreshold int    `toml:"min_frequency_threshold"`
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	Enabled    bool  `toml:"enabled"`
	TTLSeconds int   `toml:"ttl_seconds"`
	MaxCost    int64 `toml:"max_cost"`
}

// StoreConfig picks where learned state is kept.
// Backend is "file", "sqlite" or "memory"; an empty Path means the config dir.
type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// LexiconConfig points at an optional YAML override of the built-in lexicon.
type LexiconConfig struct {
	Path string `toml:"path"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit    int  `toml:"default_limit"`
	DefaultMinLen   int  `toml:"default_min_len"`
	DefaultMaxLen   int  `toml:"default_max_len"`
	DefaultNoFilter bool `toml:"default_no_filter"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", appName)
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", appName)
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/wordmux/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	ec := engine.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			MaxLimit:     ec.MaxLimit,
			MinPrefix:    1,
			MaxPrefix:    60,
			EnableFilter: true,
		},
		Engine: EngineConfig{
			DebounceMs:          int(ec.Debounce / time.Millisecond),
			FastTimeoutMs:       int(ec.FastTimeout / time.Millisecond),
			SmartTimeoutMs:      int(ec.SmartTimeout / time.Millisecond),
			FilterMinCandidates: ec.FilterMinCandidates,
			FilterMinWord:       ec.FilterMinWord,
			FallbackMinPrefix:   ec.FallbackMinPrefix,
			FallbackScore:       ec.FallbackScore,
			RateLimitPerMinute:  ec.RateLimitPerMinute,
			CorrectionMinLen:    ec.CorrectionMinLen,
			CorrectionRatio:     0.8,
			FuzzyWords:          20000,
			EnableSearch:        true,
		},
		Dict: DictConfig{
			Path:             "data",
			Watch:            true,
			MaxWords:         50000,
			MinFreqThreshold: 20,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: int(ec.CacheTTL / time.Second),
			MaxCost:    1 << 24,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Ranking: rank.DefaultWeights(),
		CLI: CliConfig{
			DefaultLimit:    24,
			DefaultMinLen:   1,
			DefaultMaxLen:   24,
			DefaultNoFilter: false,
		},
	}
}

// EngineOptions converts the file settings into the engine's Config.
func (c *Config) EngineOptions() engine.Config {
	ec := engine.DefaultConfig()
	ec.Debounce = time.Duration(c.Engine.DebounceMs) * time.Millisecond
	ec.FastTimeout = time.Duration(c.Engine.FastTimeoutMs) * time.Millisecond
	ec.SmartTimeout = time.Duration(c.Engine.SmartTimeoutMs) * time.Millisecond
	ec.EnableFilter = c.Server.EnableFilter
	ec.FilterMinCandidates = c.Engine.FilterMinCandidates
	ec.FilterMinWord = c.Engine.FilterMinWord
	ec.FallbackMinPrefix = c.Engine.FallbackMinPrefix
	ec.FallbackScore = c.Engine.FallbackScore
	ec.RateLimitPerMinute = c.Engine.RateLimitPerMinute
	ec.CorrectionMinLen = c.Engine.CorrectionMinLen
	ec.MaxLimit = c.Server.MaxLimit
	ec.CacheTTL = time.Duration(c.Cache.TTLSeconds) * time.Second
	ec.EnableSearch = c.Engine.EnableSearch
	ec.Fuzzy = providers.FuzzyConfig{TopWords: c.Engine.FuzzyWords, CorrectRatio: c.Engine.CorrectionRatio}
	ec.Weights = c.Ranking
	return ec
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps every section and key that still decodes.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "engine"); ok {
		extractEngineConfig(section, &config.Engine)
	}
	if section, ok := utils.ExtractSection(tempConfig, "dict"); ok {
		extractDictConfig(section, &config.Dict)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		extractCacheConfig(section, &config.Cache)
	}
	if section, ok := utils.ExtractSection(tempConfig, "store"); ok {
		extractStoreConfig(section, &config.Store)
	}
	if section, ok := utils.ExtractSection(tempConfig, "ranking"); ok {
		extractRankingConfig(section, &config.Ranking)
	}
	if section, ok := utils.ExtractSection(tempConfig, "lexicon"); ok {
		if val, ok := utils.ExtractString(section, "path"); ok {
			config.Lexicon.Path = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_filter"); ok {
		server.EnableFilter = val
	}
}

func extractEngineConfig(data map[string]any, e *EngineConfig) {
	ints := map[string]*int{
		"debounce_ms":           &e.DebounceMs,
		"fast_timeout_ms":       &e.FastTimeoutMs,
		"smart_timeout_ms":      &e.SmartTimeoutMs,
		"filter_min_candidates": &e.FilterMinCandidates,
		"filter_min_word":       &e.FilterMinWord,
		"fallback_min_prefix":   &e.FallbackMinPrefix,
		"rate_limit_per_minute": &e.RateLimitPerMinute,
		"correction_min_len":    &e.CorrectionMinLen,
		"fuzzy_words":           &e.FuzzyWords,
	}
	for key, dst := range ints {
		if val, ok := utils.ExtractInt64(data, key); ok {
			*dst = val
		}
	}
	if val, ok := utils.ExtractFloat(data, "fallback_score"); ok {
		e.FallbackScore = val
	}
	if val, ok := utils.ExtractFloat(data, "correction_ratio"); ok {
		e.CorrectionRatio = val
	}
	if val, ok := utils.ExtractBool(data, "enable_search"); ok {
		e.EnableSearch = val
	}
}

func extractDictConfig(data map[string]any, dict *DictConfig) {
	if val, ok := utils.ExtractString(data, "path"); ok {
		dict.Path = val
	}
	if val, ok := utils.ExtractBool(data, "watch"); ok {
		dict.Watch = val
	}
	if val, ok := utils.ExtractInt64(data, "max_words"); ok {
		dict.MaxWords = val
	}
	if val, ok := utils.ExtractInt64(data, "min_frequency_threshold"); ok {
		dict.MinFreqThreshold = val
	}
}

func extractCacheConfig(data map[string]any, c *CacheConfig) {
	if val, ok := utils.ExtractBool(data, "enabled"); ok {
		c.Enabled = val
	}
	if val, ok := utils.ExtractInt64(data, "ttl_seconds"); ok {
		c.TTLSeconds = val
	}
	if val, ok := utils.ExtractInt64(data, "max_cost"); ok {
		c.MaxCost = int64(val)
	}
}

func extractStoreConfig(data map[string]any, s *StoreConfig) {
	if val, ok := utils.ExtractString(data, "backend"); ok {
		s.Backend = val
	}
	if val, ok := utils.ExtractString(data, "path"); ok {
		s.Path = val
	}
}

func extractRankingConfig(data map[string]any, w *rank.Weights) {
	floats := map[string]*float64{
		"frequency":       &w.Frequency,
		"user_preference": &w.UserPreference,
		"context":         &w.Context,
		"typo":            &w.Typo,
		"recency":         &w.Recency,
		"source_quality":  &w.SourceQuality,
		"ctr_bonus":       &w.CTRBonus,
		"support_boost":   &w.SupportBoost,
		"blocked_penalty": &w.BlockedPenalty,
	}
	for key, dst := range floats {
		if val, ok := utils.ExtractFloat(data, key); ok {
			*dst = val
		}
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "default_min_len"); ok {
		cli.DefaultMinLen = val
	}
	if val, ok := utils.ExtractInt64(data, "default_max_len"); ok {
		cli.DefaultMaxLen = val
	}
	if val, ok := utils.ExtractBool(data, "default_no_filter"); ok {
		cli.DefaultNoFilter = val
	}
}

// RebuildConfigFile force creates a new config.toml at path, or at the
// default location when path is empty.
func RebuildConfigFile(path string) (string, error) {
	if path == "" {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return path, utils.SaveTOMLFile(DefaultConfig(), path)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
