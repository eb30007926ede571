package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commodity-forecast/internal/config"
	"commodity-forecast/internal/domain"
)

func TestOpen_LocalBackends(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(dir string) config.StorageConfig
	}{
		{"memory", func(string) config.StorageConfig {
			return config.StorageConfig{Backend: config.BackendMemory}
		}},
		{"sqlite", func(dir string) config.StorageConfig {
			return config.StorageConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "db", "forecast.db"), Migrate: true}
		}},
		{"file", func(dir string) config.StorageConfig {
			return config.StorageConfig{Backend: config.BackendFile, FileDir: filepath.Join(dir, "data")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := Open(ctx, tt.cfg(t.TempDir()), nil)
			require.NoError(t, err)
			defer s.Close()

			assert.Equal(t, tt.name, s.Backend)

			date := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
			require.NoError(t, s.Forecasts.Upsert(ctx, domain.NewForecastRecord(date, "GOLD", 12, 12)))
			got, err := s.Forecasts.Get(ctx, "GOLD", date)
			require.NoError(t, err)
			assert.Equal(t, 12.0, got.ActualPrice)

			require.NoError(t, s.History.InsertBulk(ctx, []*domain.HistoryRow{
				{Date: date, Asset: "GOLD", Price: 12, Source: domain.SourceLive},
			}))
			last, ok, err := s.History.LastDate(ctx, "GOLD")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, last.Equal(date))
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "mongo"}, nil)
	assert.Error(t, err)
}
