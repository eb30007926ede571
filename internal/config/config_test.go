package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-forecast/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_NINJAS_KEY", "test-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "daily", cfg.Settings.DataFrequency)
	assert.Equal(t, 1, cfg.Settings.PredictionHorizon)
	assert.Equal(t, "time_series_baseline", cfg.Settings.ModelName)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "last_value", cfg.Forecaster.Name)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.FetchTimeout)
	assert.Equal(t, 500, cfg.Backfill.BatchSize)
	assert.True(t, cfg.Quote.Enabled)
	assert.Equal(t, "test-key", cfg.Quote.APIKey)
	assert.Len(t, cfg.Assets, 4)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	gold, err := reg.Lookup("GOLD")
	require.NoError(t, err)
	assert.Equal(t, "micro_gold", gold.LiveKey)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
assets:
  - id: GOLD
    historical_key: GOLD
    live_key: micro_gold
settings:
  data_frequency: weekly
pipeline:
  concurrency: 4
  fetch_timeout: 3s
quote:
  enabled: false
forecaster:
  name: moving_average
  window: 3
storage:
  backend: sqlite
  sqlite_path: /tmp/forecast.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Assets, 1)
	assert.Equal(t, 7, cfg.Settings.StepDays())
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.FetchTimeout)
	assert.False(t, cfg.Quote.Enabled)
	assert.Equal(t, 3, cfg.Forecaster.Window)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/forecast.db", cfg.Storage.SQLitePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "quote:\n  enabled: true\n")
	t.Setenv("API_NINJAS_KEY", "k")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost:5432/forecast")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("PIPELINE_CONCURRENCY", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://u:p@localhost:5432/forecast", cfg.Storage.PostgresDSN)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)
}

func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		env   map[string]string
		field string
	}{
		{
			name:  "quote api key",
			yaml:  "quote:\n  enabled: true\n",
			field: "quote.api_key",
		},
		{
			name:  "postgres dsn",
			yaml:  "quote:\n  enabled: false\nstorage:\n  backend: postgres\n",
			field: "storage.postgres_dsn",
		},
		{
			name:  "clickhouse dsn",
			yaml:  "quote:\n  enabled: false\nstorage:\n  backend: clickhouse\n",
			field: "storage.clickhouse_dsn",
		},
		{
			name:  "forecaster url",
			yaml:  "quote:\n  enabled: false\nforecaster:\n  name: http\n",
			field: "forecaster.url",
		},
		{
			name:  "export bucket",
			yaml:  "quote:\n  enabled: false\nexport:\n  enabled: true\n",
			field: "export.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_NINJAS_KEY", "")
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))

			var cerr *domain.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "quote:\n  enabled: false\nstorage:\n  backend: mongo\n"},
		{"bad frequency", "quote:\n  enabled: false\nsettings:\n  data_frequency: hourly\n"},
		{"zero concurrency", "quote:\n  enabled: false\npipeline:\n  concurrency: 0\n"},
		{"horizon", "quote:\n  enabled: false\nsettings:\n  prediction_horizon: 3\n"},
		{"duplicate asset", "quote:\n  enabled: false\nassets:\n  - {id: GOLD, historical_key: GOLD, live_key: g}\n  - {id: GOLD, historical_key: GOLD, live_key: g}\n"},
		{"malformed yaml", "quote: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("QUOTE_ENABLED", "maybe")
	_, err := Load("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
