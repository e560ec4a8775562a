package store

import (
	"context"
	"fmt"

	"github.com/halviala/als-platform/internal/faults"
)

// EnsureSchema creates the adaptive_learning table and its indexes if
// missing and applies additive migrations to older schemas. Safe to
// call on every startup; never drops or renames columns.
func (s *Store) EnsureSchema(ctx context.Context) error {
	err := s.withRetry(ctx, "ensure_schema", func() error {
		if _, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS adaptive_learning (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				room TEXT NOT NULL CHECK(room != ''),
				condition_key TEXT NOT NULL CHECK(condition_key != ''),
				brightness_percent INTEGER NOT NULL CHECK(brightness_percent >= 0 AND brightness_percent <= 100),
				temperature_kelvin INTEGER CHECK(temperature_kelvin IS NULL OR (temperature_kelvin >= 2000 AND temperature_kelvin <= 7000)),
				timestamp TEXT NOT NULL CHECK(timestamp != ''),
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(room, condition_key, timestamp)
			)`); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		for _, stmt := range []string{
			`CREATE INDEX IF NOT EXISTS idx_room_condition ON adaptive_learning(room, condition_key)`,
			`CREATE INDEX IF NOT EXISTS idx_timestamp ON adaptive_learning(timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_room_timestamp ON adaptive_learning(room, timestamp)`,
		} {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}

		return s.migrate(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Database schema validated")
	return nil
}

// migrate adds nullable columns missing from legacy tables
func (s *Store) migrate(ctx context.Context) error {
	columns, err := s.tableColumns(ctx, "adaptive_learning")
	if err != nil {
		return err
	}

	migrations := map[string]string{
		"temperature_kelvin": `ALTER TABLE adaptive_learning ADD COLUMN temperature_kelvin INTEGER
			CHECK(temperature_kelvin IS NULL OR (temperature_kelvin >= 2000 AND temperature_kelvin <= 7000))`,
		"created_at": `ALTER TABLE adaptive_learning ADD COLUMN created_at DATETIME DEFAULT CURRENT_TIMESTAMP`,
	}

	for column, stmt := range migrations {
		if columns[column] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate column %s: %w", column, err)
		}
		s.logger.Info("Applied schema migration", "column", column)
	}

	return nil
}

// tableColumns returns the set of column names on a table
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, &faults.StorageError{Op: "table_info", Cause: err}
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
