package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GRAPHRAG"

// Bounds the backend accepts for the search limit.
const (
	MinSearchLimit = 1
	MaxSearchLimit = 50
)

// LogConfig controls the rotating log file.
type LogConfig struct {
	File  string `yaml:"file" envconfig:"FILE"`
	Level string `yaml:"level" envconfig:"LEVEL"`
}

// SentryConfig enables error capture when DSN is set.
type SentryConfig struct {
	DSN         string `yaml:"dsn" envconfig:"DSN"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" envconfig:"DEBOUNCE_MS"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	APIURL             string `yaml:"api_url" envconfig:"API_URL"`
	WorkspaceID        string `yaml:"workspace_id" envconfig:"WORKSPACE_ID"`
	CollectionID       string `yaml:"collection_id" envconfig:"COLLECTION_ID"`
	CollectionName     string `yaml:"collection_name" envconfig:"COLLECTION_NAME"`
	SearchLimit        int    `yaml:"search_limit" envconfig:"SEARCH_LIMIT"`
	PreviewChars       int    `yaml:"preview_chars" envconfig:"PREVIEW_CHARS"`
	MaxEntityChips     int    `yaml:"max_entity_chips" envconfig:"MAX_ENTITY_CHIPS"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs" envconfig:"REQUEST_TIMEOUT_SECS"`

	Log    LogConfig    `yaml:"log" envconfig:"LOG"`
	Sentry SentryConfig `yaml:"sentry" envconfig:"SENTRY"`
	Watch  WatchConfig  `yaml:"watch" envconfig:"WATCH"`
}

// RequestTimeout is zero when requests should never time out.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// WatchDebounce is the quiet period before a changed file is uploaded.
func (c *AppConfig) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// Load reads a config from a specified path, then applies .env and GRAPHRAG_* variables on top.
// A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./graphrag.yaml first, then ~/.config/graphrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/graphrag/config.yaml and uses them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "graphrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); errors.Is(err, os.ErrNotExist) {
		if err := Save(userPath, defaultConfig()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	_ = godotenv.Load()
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "graphrag", "config.yaml"), nil
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "graphrag", "graphrag.log")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.APIURL == "" {
		cfg.APIURL = "http://localhost:8000"
	}
	if cfg.WorkspaceID == "" {
		cfg.WorkspaceID = "default_workspace"
	}
	if cfg.SearchLimit == 0 {
		cfg.SearchLimit = 10
	}
	if cfg.PreviewChars == 0 {
		cfg.PreviewChars = 200
	}
	if cfg.MaxEntityChips == 0 {
		cfg.MaxEntityChips = 5
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogPath()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = "development"
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 500
	}
}

func (c *AppConfig) validate() error {
	if err := ValidateSearchLimit(c.SearchLimit); err != nil {
		return fmt.Errorf("search_limit %w", err)
	}
	if c.RequestTimeoutSecs < 0 {
		return fmt.Errorf("request_timeout_secs must not be negative")
	}
	return nil
}

// ValidateSearchLimit checks n against the backend's accepted range.
func ValidateSearchLimit(n int) error {
	if n < MinSearchLimit || n > MaxSearchLimit {
		return fmt.Errorf("must be between %d and %d, got %d", MinSearchLimit, MaxSearchLimit, n)
	}
	return nil
}
