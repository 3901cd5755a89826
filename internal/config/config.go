package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	// EnvDataDir overrides the data directory from the environment.
	EnvDataDir = "WV_DATA_DIR"

	defaultPort         = 2340
	defaultEnv          = "development"
	defaultDatabaseFile = "willvault.db"
	defaultRedisURL     = "redis://localhost:6379/0"

	defaultAutosaveDelayMS      = 2000
	defaultAutosaveMaxRetries   = 3
	defaultAutosaveRetryDelayMS = 1000

	defaultGeneratorTimeout = 30 * time.Second

	defaultArchiveInterval = 24 * time.Hour
	defaultArchiveKeep     = 7
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int             `yaml:"port"`
	Env            string          `yaml:"env"` // "development" | "production"
	RedisURL       string          `yaml:"redis_url"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	Paths          PathsConfig     `yaml:"paths"`
	Autosave       AutosaveConfig  `yaml:"autosave"`
	Generator      GeneratorConfig `yaml:"generator"`
	Archive        ArchiveConfig   `yaml:"archive"`
}

// PathsConfig locates the local durable store and auxiliary directories.
type PathsConfig struct {
	Data     string `yaml:"data"`
	Logs     string `yaml:"logs"`
	Archives string `yaml:"archives"`
}

// AutosaveConfig tunes the per-draft autosave scheduler.
type AutosaveConfig struct {
	DelayMS      int   `yaml:"delay_ms"`
	Enabled      *bool `yaml:"enabled"`
	MaxRetries   int   `yaml:"max_retries"`
	RetryDelayMS int   `yaml:"retry_delay_ms"`
}

// GeneratorConfig points at the remote document-generation API.
type GeneratorConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ArchiveConfig controls periodic store archival.
type ArchiveConfig struct {
	Enabled       bool      `yaml:"enabled"`
	IntervalHours int       `yaml:"interval_hours"`
	Keep          int       `yaml:"keep"`
	S3            S3Options `yaml:"s3"`
}

// S3Options configures the optional off-site archive upload.
type S3Options struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	PathStyleAccess bool   `yaml:"path_style_access"`
}

// Load reads the YAML config at path and applies defaults. A missing file is
// not an error; defaults are returned so a bare checkout still starts.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = defaultEnv
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		c.RedisURL = defaultRedisURL
	}
	if dir := strings.TrimSpace(os.Getenv(EnvDataDir)); dir != "" {
		c.Paths.Data = dir
	}
	if strings.TrimSpace(c.Paths.Data) == "" {
		c.Paths.Data = defaultDataDir()
	}
	if strings.TrimSpace(c.Paths.Logs) == "" {
		c.Paths.Logs = filepath.Join(c.Paths.Data, "logs")
	}
	if strings.TrimSpace(c.Paths.Archives) == "" {
		c.Paths.Archives = filepath.Join(c.Paths.Data, "archives")
	}

	if c.Autosave.DelayMS <= 0 {
		c.Autosave.DelayMS = defaultAutosaveDelayMS
	}
	if c.Autosave.MaxRetries <= 0 {
		c.Autosave.MaxRetries = defaultAutosaveMaxRetries
	}
	if c.Autosave.RetryDelayMS <= 0 {
		c.Autosave.RetryDelayMS = defaultAutosaveRetryDelayMS
	}

	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = int(defaultGeneratorTimeout / time.Second)
	}

	if c.Archive.IntervalHours <= 0 {
		c.Archive.IntervalHours = int(defaultArchiveInterval / time.Hour)
	}
	if c.Archive.Keep <= 0 {
		c.Archive.Keep = defaultArchiveKeep
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".willvault")
	}
	return filepath.Join(".", "data")
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// DatabasePath is the sqlite file backing the local durable store.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.Paths.Data, defaultDatabaseFile)
}

// AutosaveEnabled resolves the tri-state enabled flag (default true).
func (c *AppConfig) AutosaveEnabled() bool {
	return c.Autosave.Enabled == nil || *c.Autosave.Enabled
}

// AutosaveDelay returns the debounce window.
func (c *AppConfig) AutosaveDelay() time.Duration {
	return time.Duration(c.Autosave.DelayMS) * time.Millisecond
}

// AutosaveRetryDelay returns the base backoff unit.
func (c *AppConfig) AutosaveRetryDelay() time.Duration {
	return time.Duration(c.Autosave.RetryDelayMS) * time.Millisecond
}

// GeneratorTimeout returns the remote API client timeout.
func (c *AppConfig) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// ArchiveInterval returns the period between automatic archives.
func (c *AppConfig) ArchiveInterval() time.Duration {
	return time.Duration(c.Archive.IntervalHours) * time.Hour
}
