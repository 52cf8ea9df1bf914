// Package postgres opens the pool the postgres document source reads from.
// A build issues one ordered SELECT, so the pool stays small and every
// session is tagged with application_name=invindex for pg_stat_activity.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
)

const applicationName = "invindex"

// Open builds a lib/pq connector from cfg and pings the server under ctx.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	connector, err := pq.NewConnector(cfg.DSN() + " application_name=" + applicationName)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres at %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}
