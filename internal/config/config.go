// Package config loads application configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendSQLite     = "sqlite"
	BackendFile       = "file"
)

// Config holds all application configuration.
type Config struct {
	Assets     []AssetEntry     `yaml:"assets" validate:"dive"`
	Settings   SettingsConfig   `yaml:"settings"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	History    HistoryConfig    `yaml:"history"`
	Quote      QuoteConfig      `yaml:"quote"`
	Forecaster ForecasterConfig `yaml:"forecaster"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Export     ExportConfig     `yaml:"export"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Server     ServerConfig     `yaml:"server"`
	Backfill   BackfillConfig   `yaml:"backfill"`
	Log        logger.Config    `yaml:"log"`
}

// AssetEntry is one asset row in the config file.
type AssetEntry struct {
	ID            string `yaml:"id" validate:"required"`
	HistoricalKey string `yaml:"historical_key" validate:"required"`
	LiveKey       string `yaml:"live_key" validate:"required"`
}

// SettingsConfig holds global model settings.
type SettingsConfig struct {
	DataFrequency     string `yaml:"data_frequency" default:"daily" validate:"oneof=daily weekly"`
	PredictionHorizon int    `yaml:"prediction_horizon" default:"1" validate:"eq=1"`
	ModelName         string `yaml:"model_name" default:"time_series_baseline"`
}

// PipelineConfig controls the forecast run.
type PipelineConfig struct {
	Concurrency      int           `yaml:"concurrency" default:"1" validate:"min=1,max=32"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" default:"10s" validate:"gt=0"`
	RecordLiveQuotes bool          `yaml:"record_live_quotes"`
}

// HistoryConfig selects where historical series are loaded from.
type HistoryConfig struct {
	Source  string `yaml:"source" default:"csv" validate:"oneof=csv store"`
	CSVPath string `yaml:"csv_path" default:"data/commodity_futures.csv"`
}

// QuoteConfig configures the live quote provider.
type QuoteConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	BaseURL       string        `yaml:"base_url" default:"https://api.api-ninjas.com/v1/commodityprice" validate:"url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	RatePerSecond float64       `yaml:"rate_per_second" default:"1" validate:"gt=0"`
	Burst         int           `yaml:"burst" default:"1" validate:"min=1"`
	Retries       int           `yaml:"retries" default:"2" validate:"min=0,max=10"`
	CacheTTL      time.Duration `yaml:"cache_ttl" default:"15m"`
}

// ForecasterConfig selects the forecasting model.
type ForecasterConfig struct {
	Name    string        `yaml:"name" default:"last_value" validate:"oneof=last_value moving_average http"`
	Window  int           `yaml:"window" default:"5" validate:"min=1"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" default:"60s" validate:"gt=0"`
}

// StorageConfig selects the result/history store backend.
type StorageConfig struct {
	Backend       string `yaml:"backend" default:"memory" validate:"oneof=memory postgres clickhouse sqlite file"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path" default:"data/forecast.db"`
	FileDir       string `yaml:"file_dir" default:"data"`
	Migrate       bool   `yaml:"migrate" default:"true"`
}

// RedisConfig configures the live quote cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"commodity_forecast"`
}

// KafkaConfig configures forecast event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"forecast-results"`
}

// ExportConfig configures report upload to S3.
type ExportConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region" default:"us-east-1"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix" default:"reports"`
	Format          string `yaml:"format" default:"csv" validate:"oneof=csv xlsx parquet markdown"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ScheduleConfig holds cron expressions (with seconds field).
type ScheduleConfig struct {
	PipelineCron string `yaml:"pipeline_cron" default:"0 0 18 * * 1-5"`
	AppendCron   string `yaml:"append_cron" default:"0 0 6 * * 0"`
	RunOnStart   bool   `yaml:"run_on_start"`
}

// ServerConfig configures the dashboard API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// BackfillConfig configures the CSV backfill job.
type BackfillConfig struct {
	BatchSize int `yaml:"batch_size" default:"500" validate:"min=1"`
}

// Load reads config from a YAML file, then applies environment variable overrides
// and validates the result. A missing file yields defaults.
// Every returned error matches domain.ErrConfiguration.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("apply defaults: %v", err)}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, &domain.ConfigError{Field: path, Reason: fmt.Sprintf("read config: %v", err)}
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &domain.ConfigError{Field: path, Reason: fmt.Sprintf("parse config: %v", err)}
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if len(cfg.Assets) == 0 {
		for _, a := range domain.DefaultAssets() {
			cfg.Assets = append(cfg.Assets, AssetEntry{ID: a.ID, HistoricalKey: a.HistoricalKey, LiveKey: a.LiveKey})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("STORAGE_BACKEND", &c.Storage.Backend)
	setString("POSTGRES_DSN", &c.Storage.PostgresDSN)
	setString("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	setString("SQLITE_PATH", &c.Storage.SQLitePath)
	setString("HISTORY_CSV_PATH", &c.History.CSVPath)
	setString("HISTORY_SOURCE", &c.History.Source)
	setString("API_NINJAS_KEY", &c.Quote.APIKey)
	setString("QUOTE_BASE_URL", &c.Quote.BaseURL)
	setString("FORECASTER", &c.Forecaster.Name)
	setString("FORECASTER_URL", &c.Forecaster.URL)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("KAFKA_TOPIC", &c.Kafka.Topic)
	setString("S3_BUCKET", &c.Export.Bucket)
	setString("S3_REGION", &c.Export.Region)
	setString("S3_ENDPOINT", &c.Export.Endpoint)
	setString("AWS_ACCESS_KEY_ID", &c.Export.AccessKeyID)
	setString("AWS_SECRET_ACCESS_KEY", &c.Export.SecretAccessKey)
	setString("SERVER_ADDR", &c.Server.Addr)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("QUOTE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return &domain.ConfigError{Field: "QUOTE_ENABLED", Reason: err.Error()}
		}
		c.Quote.Enabled = enabled
	}
	if v := os.Getenv("PIPELINE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ConfigError{Field: "PIPELINE_CONCURRENCY", Reason: err.Error()}
		}
		c.Pipeline.Concurrency = n
	}
	return nil
}

var validate = validator.New()

// Validate checks field rules and backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ConfigError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &domain.ConfigError{Reason: err.Error()}
	}

	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return &domain.ConfigError{Field: "storage.postgres_dsn", Reason: "required for postgres backend (POSTGRES_DSN)"}
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			return &domain.ConfigError{Field: "storage.clickhouse_dsn", Reason: "required for clickhouse backend (CLICKHOUSE_DSN)"}
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return &domain.ConfigError{Field: "storage.sqlite_path", Reason: "required for sqlite backend"}
		}
	case BackendFile:
		if c.Storage.FileDir == "" {
			return &domain.ConfigError{Field: "storage.file_dir", Reason: "required for file backend"}
		}
	}

	if c.History.Source == "csv" && c.History.CSVPath == "" {
		return &domain.ConfigError{Field: "history.csv_path", Reason: "required for csv history source"}
	}
	if c.Quote.Enabled && c.Quote.APIKey == "" {
		return &domain.ConfigError{Field: "quote.api_key", Reason: "required when live quotes are enabled (API_NINJAS_KEY)"}
	}
	if c.Forecaster.Name == "http" && c.Forecaster.URL == "" {
		return &domain.ConfigError{Field: "forecaster.url", Reason: "required for http forecaster (FORECASTER_URL)"}
	}
	if c.Export.Enabled && c.Export.Bucket == "" {
		return &domain.ConfigError{Field: "export.bucket", Reason: "required when export is enabled (S3_BUCKET)"}
	}

	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry builds the immutable asset registry.
func (c *Config) Registry() (*domain.Registry, error) {
	assets := make([]domain.AssetConfig, len(c.Assets))
	for i, a := range c.Assets {
		assets[i] = domain.AssetConfig{ID: a.ID, HistoricalKey: a.HistoricalKey, LiveKey: a.LiveKey}
	}
	r, err := domain.NewRegistry(assets)
	if err != nil {
		return nil, &domain.ConfigError{Field: "assets", Reason: err.Error()}
	}
	return r, nil
}

// StepDays returns the calendar step between observations in days.
func (s SettingsConfig) StepDays() int {
	if s.DataFrequency == "weekly" {
		return 7
	}
	return 1
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
