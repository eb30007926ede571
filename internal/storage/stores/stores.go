// Package stores opens the configured storage backend.
package stores

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"commodity-forecast/internal/config"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/storage"
	chstore "commodity-forecast/internal/storage/clickhouse"
	"commodity-forecast/internal/storage/csvfile"
	"commodity-forecast/internal/storage/memory"
	"commodity-forecast/internal/storage/migrations"
	pgstore "commodity-forecast/internal/storage/postgres"
	"commodity-forecast/internal/storage/sqlite"
)

// Stores holds the result and history stores of one backend.
type Stores struct {
	Backend   string
	Forecasts storage.ForecastStore
	History   storage.HistoryStore
	closeFn   func() error
}

// Close releases the backend connection.
func (s *Stores) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Open connects to cfg.Backend and, if cfg.Migrate is set, applies the
// embedded schema migrations.
func Open(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*Stores, error) {
	if log == nil {
		log = logger.Nop()
	}

	switch cfg.Backend {
	case config.BackendMemory, "":
		log.Warn("using in-memory storage, results are lost on exit")
		return &Stores{
			Backend:   config.BackendMemory,
			Forecasts: memory.NewForecastStore(),
			History:   memory.NewHistoryStore(),
		}, nil

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
			log.Info("postgres migrations applied")
		}
		return &Stores{
			Backend:   config.BackendPostgres,
			Forecasts: pgstore.NewForecastStore(pool),
			History:   pgstore.NewHistoryStore(pool),
			closeFn:   func() error { pool.Close(); return nil },
		}, nil

	case config.BackendClickhouse:
		var conn *chstore.Conn
		var err error
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
			if err == nil {
				log.Info("clickhouse migrations applied")
			}
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, err
		}
		return &Stores{
			Backend:   config.BackendClickhouse,
			Forecasts: chstore.NewForecastStore(conn),
			History:   chstore.NewHistoryStore(conn),
			closeFn:   conn.Close,
		}, nil

	case config.BackendSQLite:
		if err := ensureDir(filepath.Dir(cfg.SQLitePath)); err != nil {
			return nil, err
		}
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlite migrations: %w", err)
			}
		}
		return &Stores{
			Backend:   config.BackendSQLite,
			Forecasts: sqlite.NewForecastStore(db),
			History:   sqlite.NewHistoryStore(db),
			closeFn:   db.Close,
		}, nil

	case config.BackendFile:
		if err := ensureDir(cfg.FileDir); err != nil {
			return nil, err
		}
		return &Stores{
			Backend:   config.BackendFile,
			Forecasts: csvfile.NewForecastStore(cfg.FileDir),
			History:   csvfile.NewHistoryStore(cfg.FileDir),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return nil
}
