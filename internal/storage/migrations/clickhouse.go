package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "commodity-forecast/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the DSN's database if missing, applies the
// embedded schema one statement at a time and returns a connection to it.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureClickhouseDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", dbName, err)
	}

	// The native protocol rejects multi-statement queries.
	err = eachStatement(ClickhouseFS, "clickhouse", func(_, stmt string) error {
		return conn.Exec(ctx, stmt)
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func ensureClickhouseDatabase(ctx context.Context, dsn, name string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// databaseFromDSN returns the path component of a clickhouse:// DSN.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("clickhouse dsn %q has no database", u.Redacted())
	}
	return name, nil
}
