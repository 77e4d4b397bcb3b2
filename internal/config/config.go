package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"suppliersync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Sync       SyncConfig       `yaml:"sync"`
	Retry      RetryConfig      `yaml:"retry"`
	API        APIConfig        `yaml:"api"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Exports    ExportConfig     `yaml:"exports"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SyncConfig tunes the sync pipelines. Durations are plain integers so the
// yaml stays trivially parseable; zero values fall back to the model
// defaults in applyDefaults.
type SyncConfig struct {
	PageSize            int  `yaml:"page_size"`
	MaxPages            int  `yaml:"max_pages"`
	MaxKeys             int  `yaml:"max_keys"`
	BatchSize           int  `yaml:"batch_size"`
	CheckpointEvery     int  `yaml:"checkpoint_every"`
	OverlapMinutes      int  `yaml:"overlap_minutes"`
	CallDelayMs         int  `yaml:"call_delay_ms"`
	StaleTTLMinutes     int  `yaml:"stale_ttl_minutes"`
	StartupGraceSeconds int  `yaml:"startup_grace_seconds"`
	LegacyOrderPipeline bool `yaml:"legacy_order_pipeline"`
}

func (s SyncConfig) Overlap() time.Duration      { return time.Duration(s.OverlapMinutes) * time.Minute }
func (s SyncConfig) CallDelay() time.Duration    { return time.Duration(s.CallDelayMs) * time.Millisecond }
func (s SyncConfig) StaleTTL() time.Duration     { return time.Duration(s.StaleTTLMinutes) * time.Minute }
func (s SyncConfig) StartupGrace() time.Duration {
	return time.Duration(s.StartupGraceSeconds) * time.Second
}

type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	InitialDelayMs int     `yaml:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms"`
	BackoffFactor  float64 `yaml:"backoff_factor"`
	Jitter         bool    `yaml:"jitter"`
}

func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}
func (r RetryConfig) MaxDelay() time.Duration { return time.Duration(r.MaxDelayMs) * time.Millisecond }

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// SupplierConfig is one entry of the suppliers file (a separate yaml,
// loaded by cmd/syncd). Credentials come in via ${ENV} expansion.
type SupplierConfig struct {
	Code     string `yaml:"code"`
	BaseURL  string `yaml:"base_url"`
	Account  string `yaml:"account"`
	APIKey   string `yaml:"api_key"`
	Disabled bool   `yaml:"disabled"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен: в контейнере переменные приходят из окружения
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth enabled but no api keys configured")
	}
	if c.Retry.BackoffFactor < 0 {
		return errors.New("retry backoff factor must not be negative")
	}
	return nil
}

// ValidateSuppliers checks the suppliers file for duplicates and gaps.
func ValidateSuppliers(suppliers []SupplierConfig) error {
	codes := make(map[string]bool)
	for _, s := range suppliers {
		if s.Code == "" {
			return errors.New("supplier with empty code")
		}
		if codes[s.Code] {
			return fmt.Errorf("duplicate supplier code: %s", s.Code)
		}
		if !s.Disabled && s.BaseURL == "" {
			return fmt.Errorf("supplier %s has no base_url", s.Code)
		}
		codes[s.Code] = true
	}
	return nil
}

// ParamDefaults exposes the sync tuning as clamp defaults for job params.
func (c *Config) ParamDefaults() models.ParamDefaults {
	return models.ParamDefaults{
		PageSize:        c.Sync.PageSize,
		MaxPages:        c.Sync.MaxPages,
		MaxKeys:         c.Sync.MaxKeys,
		CheckpointEvery: c.Sync.CheckpointEvery,
		Overlap:         c.Sync.Overlap(),
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "suppliersync"
	}
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = models.DefaultPageSize
	}
	if c.Sync.MaxPages == 0 {
		c.Sync.MaxPages = models.DefaultMaxPages
	}
	if c.Sync.MaxKeys == 0 {
		c.Sync.MaxKeys = models.DefaultMaxKeys
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = models.DefaultBatchSize
	}
	if c.Sync.CheckpointEvery == 0 {
		c.Sync.CheckpointEvery = models.DefaultCheckpointEvery
	}
	if c.Sync.OverlapMinutes == 0 {
		c.Sync.OverlapMinutes = int(models.DefaultOverlap / time.Minute)
	}
	if c.Sync.CallDelayMs == 0 {
		c.Sync.CallDelayMs = int(models.DefaultCallDelay / time.Millisecond)
	}
	if c.Sync.StaleTTLMinutes == 0 {
		c.Sync.StaleTTLMinutes = int(models.DefaultStaleTTL / time.Minute)
	}
	if c.Sync.StartupGraceSeconds == 0 {
		c.Sync.StartupGraceSeconds = int(models.DefaultStartupGrace / time.Second)
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelayMs == 0 {
		c.Retry.InitialDelayMs = 2000
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 60000
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = 2
	}

	if c.API.Enabled {
		if c.API.Port == 0 {
			c.API.Port = 8080
		}
		if c.API.Auth.HeaderAPIKey == "" {
			c.API.Auth.HeaderAPIKey = "x-api-key"
		}
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
