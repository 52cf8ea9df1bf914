package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/invindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
)

// PostgresSource reads documents from a table with id and content columns.
// Table must already be validated as an identifier (config.Validate does).
type PostgresSource struct {
	DB     *sql.DB
	Table  string
	Logger *slog.Logger
}

func (s PostgresSource) query() string {
	return fmt.Sprintf(`SELECT id::text, content FROM %s ORDER BY id`, s.Table)
}

func (s PostgresSource) Documents(ctx context.Context) ([]index.Document, Stats, error) {
	l := logger.WithComponent(s.Logger, "postgres-loader")
	rows, err := s.DB.QueryContext(ctx, s.query())
	if err != nil {
		return nil, Stats{}, fmt.Errorf("querying documents from %s: %w", s.Table, err)
	}
	defer rows.Close()

	var (
		docs  []index.Document
		stats Stats
	)
	for rows.Next() {
		var (
			id      string
			content sql.NullString
		)
		if err := rows.Scan(&id, &content); err != nil {
			return nil, stats, fmt.Errorf("scanning document row: %w", err)
		}
		if id == "" {
			stats.Skipped++
			l.Warn("skipping document row with empty id")
			continue
		}
		docs = append(docs, index.Document{ID: id, Content: content.String})
		stats.Loaded++
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("iterating document rows: %w", err)
	}
	l.Info("documents loaded from postgres", "table", s.Table, "count", stats.Loaded)
	return docs, stats, nil
}
