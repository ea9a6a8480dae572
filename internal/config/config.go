// Package config loads the tuning knobs the debate and discussion core
// needs, from environment variables with built-in defaults, optionally
// overridden by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tuning knob the core components read.
type Config struct {
	ClaudeModel            string   `yaml:"claude_model"`
	FallbackModels         []string `yaml:"fallback_models"`
	DefaultTurnTimeout     int      `yaml:"default_turn_timeout_seconds"`
	DefaultTurnCooldown    int      `yaml:"default_turn_cooldown_seconds"`
	DefaultMaxTurns        int      `yaml:"default_max_turns"`
	DefaultTokenLimit      int      `yaml:"default_token_limit"`
	OneVOneAgentCount      int      `yaml:"one_v_one_agent_count"`
	TeamAgentCount         int      `yaml:"team_agent_count"`
	SandboxTurnCount       int      `yaml:"sandbox_turn_count"`
	MaxConcurrentExternal  int      `yaml:"max_concurrent_debates_per_external"`
	FactcheckMaxPerDebate  int      `yaml:"factcheck_max_per_debate"`
	URLFetchTimeoutSeconds int      `yaml:"url_fetch_timeout_seconds"`
	UpstreamBodyLimitBytes int      `yaml:"upstream_body_limit_bytes"`
	AuthLockoutThreshold   int      `yaml:"auth_lockout_threshold"`
	AuthLockoutWindowSecs  int      `yaml:"auth_lockout_window_seconds"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	HTTPAddr    string `yaml:"http_addr"`
}

// Default returns the baseline configuration before environment or file
// overrides are applied.
func Default() *Config {
	return &Config{
		ClaudeModel:            "claude-sonnet-4-5-20250929",
		FallbackModels:         []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"},
		DefaultTurnTimeout:     120,
		DefaultTurnCooldown:    5,
		DefaultMaxTurns:        6,
		DefaultTokenLimit:      500,
		OneVOneAgentCount:      2,
		TeamAgentCount:         4,
		SandboxTurnCount:       6,
		MaxConcurrentExternal:  3,
		FactcheckMaxPerDebate:  20,
		URLFetchTimeoutSeconds: 5,
		UpstreamBodyLimitBytes: 1 << 20,
		AuthLockoutThreshold:   5,
		AuthLockoutWindowSecs:  300,
		PostgresDSN:            "postgres://localhost:5432/agoracore",
		RedisAddr:              "localhost:6379",
		HTTPAddr:               ":8080",
	}
}

// Load builds a Config from defaults, environment variables, and an
// optional YAML file (path from the configPath argument, or
// AGORACORE_CONFIG_FILE when it is empty; file values taking precedence over
// env, env over defaults). Only the fields handled in applyEnv and
// mergeNonZero are overridden; the agent counts, sandbox turn count,
// concurrent-debate cap and upstream body limit always keep their defaults,
// and the URL fetch timeout and auth lockout fields are read from the
// environment but not from the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	applyEnv(cfg)

	if configPath == "" {
		configPath = os.Getenv("AGORACORE_CONFIG_FILE")
	}
	if configPath != "" {
		if err := applyFile(cfg, configPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ClaudeModel = getEnv("AGORACORE_CLAUDE_MODEL", cfg.ClaudeModel)
	cfg.FallbackModels = getEnvSlice("AGORACORE_FALLBACK_MODELS", cfg.FallbackModels)
	cfg.DefaultTurnTimeout = getIntEnv("AGORACORE_TURN_TIMEOUT_SECONDS", cfg.DefaultTurnTimeout)
	cfg.DefaultTurnCooldown = getIntEnv("AGORACORE_TURN_COOLDOWN_SECONDS", cfg.DefaultTurnCooldown)
	cfg.DefaultMaxTurns = getIntEnv("AGORACORE_MAX_TURNS", cfg.DefaultMaxTurns)
	cfg.DefaultTokenLimit = getIntEnv("AGORACORE_TOKEN_LIMIT", cfg.DefaultTokenLimit)
	cfg.FactcheckMaxPerDebate = getIntEnv("AGORACORE_FACTCHECK_MAX_PER_DEBATE", cfg.FactcheckMaxPerDebate)
	cfg.URLFetchTimeoutSeconds = getIntEnv("AGORACORE_URL_FETCH_TIMEOUT_SECONDS", cfg.URLFetchTimeoutSeconds)
	cfg.AuthLockoutThreshold = getIntEnv("AGORACORE_AUTH_LOCKOUT_THRESHOLD", cfg.AuthLockoutThreshold)
	cfg.AuthLockoutWindowSecs = getIntEnv("AGORACORE_AUTH_LOCKOUT_WINDOW_SECONDS", cfg.AuthLockoutWindowSecs)
	cfg.PostgresDSN = getEnv("AGORACORE_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getEnv("AGORACORE_REDIS_ADDR", cfg.RedisAddr)
	cfg.HTTPAddr = getEnv("AGORACORE_HTTP_ADDR", cfg.HTTPAddr)
}

func applyFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeNonZero(cfg, &fileCfg)
	return nil
}

func mergeNonZero(dst, src *Config) {
	if src.ClaudeModel != "" {
		dst.ClaudeModel = src.ClaudeModel
	}
	if len(src.FallbackModels) > 0 {
		dst.FallbackModels = src.FallbackModels
	}
	if src.DefaultTurnTimeout != 0 {
		dst.DefaultTurnTimeout = src.DefaultTurnTimeout
	}
	if src.DefaultTurnCooldown != 0 {
		dst.DefaultTurnCooldown = src.DefaultTurnCooldown
	}
	if src.DefaultMaxTurns != 0 {
		dst.DefaultMaxTurns = src.DefaultMaxTurns
	}
	if src.DefaultTokenLimit != 0 {
		dst.DefaultTokenLimit = src.DefaultTokenLimit
	}
	if src.FactcheckMaxPerDebate != 0 {
		dst.FactcheckMaxPerDebate = src.FactcheckMaxPerDebate
	}
	if src.PostgresDSN != "" {
		dst.PostgresDSN = src.PostgresDSN
	}
	if src.RedisAddr != "" {
		dst.RedisAddr = src.RedisAddr
	}
	if src.HTTPAddr != "" {
		dst.HTTPAddr = src.HTTPAddr
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
