// Package store persists learned lighting samples in SQLite. The table
// is a keyed store: room and condition key index ordered samples of
// observed brightness and color temperature.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halviala/als-platform/internal/conditions"
	"github.com/halviala/als-platform/internal/faults"
)

// timestampLayout is the ISO-8601 second-resolution format samples carry
const timestampLayout = "2006-01-02T15:04:05"

// LearnedSample is one taught (brightness, temperature) observation
type LearnedSample struct {
	ID                int64
	Room              string
	ConditionKey      string
	BrightnessPercent int
	TemperatureKelvin *int
	Timestamp         string
	CreatedAt         time.Time
}

// InsertResult reports the outcome of a teaching insert
type InsertResult struct {
	ID           int64
	Duplicate    bool
	SampleCount  int // samples for this (room, condition_key)
	TotalSamples int // samples for this room
}

// Store provides access to the adaptive learning table
type Store struct {
	db        *sql.DB
	minKelvin int
	maxKelvin int
	logger    *slog.Logger
	now       func() time.Time
}

// Options configures a Store
type Options struct {
	// MinKelvin and MaxKelvin bound accepted color temperatures.
	// Zero values fall back to 2000-7000, matching the table CHECK.
	MinKelvin int
	MaxKelvin int
}

// Open opens the SQLite database at dsn and returns a Store
func Open(dsn string, opts Options, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &faults.StorageError{Op: "open", Cause: err}
	}

	// SQLite serializes writers; a single connection avoids self-inflicted
	// lock contention between handlers in the same process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &faults.StorageError{Op: "open", Cause: err}
	}

	return New(db, opts, logger), nil
}

// New wraps an existing database handle in a Store
func New(db *sql.DB, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinKelvin == 0 {
		opts.MinKelvin = 2000
	}
	if opts.MaxKelvin == 0 {
		opts.MaxKelvin = 7000
	}
	return &Store{
		db:        db,
		minKelvin: opts.MinKelvin,
		maxKelvin: opts.MaxKelvin,
		logger:    logger,
		now:       time.Now,
	}
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping tests the database connection
func (s *Store) Ping() error {
	if err := s.db.Ping(); err != nil {
		return &faults.StorageError{Op: "ping", Cause: err}
	}
	return nil
}

// Insert records a teaching sample. Brightness must be within [0,100]
// and temperature, when given, within the configured Kelvin bounds.
// An identical (room, condition_key) taught within the last 60 seconds
// is suppressed: the result carries Duplicate=true and no row is added.
func (s *Store) Insert(ctx context.Context, room, conditionKey string, brightness int, temperature *int) (*InsertResult, error) {
	if brightness < 0 || brightness > 100 {
		return nil, &faults.ValidationError{Field: "brightness", Value: brightness, Message: "must be between 0 and 100"}
	}
	if temperature != nil && (*temperature < s.minKelvin || *temperature > s.maxKelvin) {
		return nil, &faults.ValidationError{
			Field:   "temperature",
			Value:   *temperature,
			Message: fmt.Sprintf("must be between %dK and %dK", s.minKelvin, s.maxKelvin),
		}
	}
	if conditionKey == "" {
		return nil, &faults.ValidationError{Field: "condition_key", Value: conditionKey, Message: "must not be empty"}
	}

	normalized := conditions.NormalizeRoom(room)
	if normalized == "" {
		return nil, &faults.ValidationError{Field: "room", Value: room, Message: "must not be empty"}
	}

	ts := s.now()
	result := &InsertResult{}

	err := s.withRetry(ctx, "insert", func() error {
		return s.transact(ctx, func(tx *sql.Tx) error {
			// Anti-spam guard, not a uniqueness constraint: suppress
			// identical teaches within the last minute.
			cutoff := ts.Add(-time.Minute).Format(timestampLayout)
			var recent int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM adaptive_learning
				 WHERE room = ? AND condition_key = ? AND timestamp > ?`,
				normalized, conditionKey, cutoff,
			).Scan(&recent)
			if err != nil {
				return fmt.Errorf("duplicate check: %w", err)
			}
			if recent > 0 {
				result.Duplicate = true
				return nil
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO adaptive_learning
				 (room, condition_key, brightness_percent, temperature_kelvin, timestamp, created_at)
				 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
				normalized, conditionKey, brightness, temperature, ts.Format(timestampLayout),
			)
			if err != nil {
				return fmt.Errorf("insert sample: %w", err)
			}

			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("read insert id: %w", err)
			}
			result.ID = id

			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM adaptive_learning WHERE room = ? AND condition_key = ?`,
				normalized, conditionKey,
			).Scan(&result.SampleCount); err != nil {
				return fmt.Errorf("count key samples: %w", err)
			}

			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM adaptive_learning WHERE room = ?`,
				normalized,
			).Scan(&result.TotalSamples); err != nil {
				return fmt.Errorf("count room samples: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.Warn("Duplicate teaching attempt suppressed",
			"room", normalized,
			"condition_key", conditionKey)
	} else {
		s.logger.Info("Teaching sample stored",
			"room", normalized,
			"condition_key", conditionKey,
			"brightness", brightness,
			"sample_count", result.SampleCount,
			"row_id", result.ID)
	}

	return result, nil
}

// Query returns samples for a room, optionally filtered by condition
// key, newest first. Limit is clamped to [1,1000]; values <= 0 use the
// default of 100.
func (s *Store) Query(ctx context.Context, room, conditionKey string, limit int) ([]LearnedSample, error) {
	normalized := conditions.NormalizeRoom(room)
	if normalized == "" {
		return nil, &faults.ValidationError{Field: "room", Value: room, Message: "must not be empty"}
	}

	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `SELECT id, room, condition_key, brightness_percent, temperature_kelvin, timestamp, created_at
	          FROM adaptive_learning WHERE room = ?`
	args := []interface{}{normalized}
	if conditionKey != "" {
		query += ` AND condition_key = ?`
		args = append(args, conditionKey)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	var samples []LearnedSample
	err := s.withRetry(ctx, "query", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query samples: %w", err)
		}
		defer rows.Close()

		samples = samples[:0]
		for rows.Next() {
			var sample LearnedSample
			var temp sql.NullInt64
			var created sql.NullTime
			if err := rows.Scan(&sample.ID, &sample.Room, &sample.ConditionKey,
				&sample.BrightnessPercent, &temp, &sample.Timestamp, &created); err != nil {
				return fmt.Errorf("scan sample: %w", err)
			}
			if temp.Valid {
				k := int(temp.Int64)
				sample.TemperatureKelvin = &k
			}
			if created.Valid {
				sample.CreatedAt = created.Time
			}
			samples = append(samples, sample)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return samples, nil
}

// DeleteByID removes a single sample. Returns the number of rows
// removed; a missing id is a no-op returning 0.
func (s *Store) DeleteByID(ctx context.Context, id int64) (int64, error) {
	return s.deleteWhere(ctx, "delete_by_id",
		`DELETE FROM adaptive_learning WHERE id = ?`, id)
}

// DeleteByKey removes all samples for a (room, condition_key) pair
func (s *Store) DeleteByKey(ctx context.Context, room, conditionKey string) (int64, error) {
	return s.deleteWhere(ctx, "delete_by_key",
		`DELETE FROM adaptive_learning WHERE room = ? AND condition_key = ?`,
		conditions.NormalizeRoom(room), conditionKey)
}

// DeleteByRoom removes all samples for a room
func (s *Store) DeleteByRoom(ctx context.Context, room string) (int64, error) {
	return s.deleteWhere(ctx, "delete_by_room",
		`DELETE FROM adaptive_learning WHERE room = ?`, conditions.NormalizeRoom(room))
}

// PruneOlderThan removes samples older than the retention period and
// returns the number removed
func (s *Store) PruneOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, &faults.ValidationError{Field: "retention_days", Value: retentionDays, Message: "must be positive"}
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays).Format(timestampLayout)
	removed, err := s.deleteWhere(ctx, "prune",
		`DELETE FROM adaptive_learning WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("Pruned old learning samples", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// deleteWhere runs a delete statement inside a transaction and returns
// the affected row count
func (s *Store) deleteWhere(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	var count int64
	err := s.withRetry(ctx, op, func() error {
		return s.transact(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			count, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("%s rows affected: %w", op, err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Stats summarizes store contents for health reporting
type Stats struct {
	TotalSamples     int
	UniqueRooms      int
	UniqueConditions int
	RecentSamples    int // taught within the last 7 days
}

// GetStats returns store-level counts used by the diagnostics layer
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	recentCutoff := s.now().AddDate(0, 0, -7).Format(timestampLayout)

	err := s.withRetry(ctx, "stats", func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COUNT(DISTINCT room),
			       COUNT(DISTINCT condition_key),
			       SUM(CASE WHEN timestamp > ? THEN 1 ELSE 0 END)
			FROM adaptive_learning`, recentCutoff)
		var recent sql.NullInt64
		if err := row.Scan(&stats.TotalSamples, &stats.UniqueRooms, &stats.UniqueConditions, &recent); err != nil {
			return fmt.Errorf("stats query: %w", err)
		}
		if recent.Valid {
			stats.RecentSamples = int(recent.Int64)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// transact executes fn within a transaction with explicit rollback on
// failure, so a mid-operation error leaves the store in its prior state
func (s *Store) transact(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
