package db

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecobins/binwatch/engine"
)

// Store implements engine.Store on top of a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const upsertLevelSQL = `
INSERT INTO binwatch.waste_levels (bin_type, level_percentage, is_full, measured_at, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (bin_type) DO UPDATE
SET level_percentage = EXCLUDED.level_percentage,
    is_full = EXCLUDED.is_full,
    measured_at = EXCLUDED.measured_at,
    updated_at = NOW()
WHERE waste_levels.measured_at <= EXCLUDED.measured_at
`

// UpsertLevel writes the current-level record for a category. The conflict
// clause keeps measured_at monotonic: a write older than the stored record
// is dropped and reported as not applied. Row-level locking on the single
// conflicting row serializes concurrent writers for the same category.
func (s *Store) UpsertLevel(ctx context.Context, rec engine.CurrentLevelRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, upsertLevelSQL,
		rec.Category, rec.LevelPercentage, rec.IsFull, rec.MeasuredAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const levelSQL = `
    SELECT bin_type, level_percentage, is_full, measured_at
    FROM binwatch.waste_levels
    WHERE bin_type = $1
`

// Level returns the current-level record for one category, or nil when the
// category has never been measured.
func (s *Store) Level(ctx context.Context, category engine.BinCategory) (*engine.CurrentLevelRecord, error) {
	row := s.pool.QueryRow(ctx, levelSQL, category)

	var rec engine.CurrentLevelRecord
	if err := row.Scan(&rec.Category, &rec.LevelPercentage, &rec.IsFull, &rec.MeasuredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

const levelsSQL = `
    SELECT bin_type, level_percentage, is_full, measured_at
    FROM binwatch.waste_levels
    ORDER BY bin_type
`

// Levels returns the current-level records for every measured category.
func (s *Store) Levels(ctx context.Context) ([]engine.CurrentLevelRecord, error) {
	rows, err := s.pool.Query(ctx, levelsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]engine.CurrentLevelRecord, 0, 3)
	for rows.Next() {
		var rec engine.CurrentLevelRecord
		if err := rows.Scan(&rec.Category, &rec.LevelPercentage, &rec.IsFull, &rec.MeasuredAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const appendEventSQL = `
INSERT INTO binwatch.waste_logs (bin_type, label, confidence_score, count, logged_at)
VALUES ($1, $2, $3, $4, $5)
`

// AppendEvent inserts one classification event. Rows are never merged or
// mutated afterwards.
func (s *Store) AppendEvent(ctx context.Context, ev engine.ClassificationEvent) error {
	_, err := s.pool.Exec(ctx, appendEventSQL,
		ev.Category, ev.Label, ev.ConfidenceScore, ev.Count, ev.LoggedAt)
	return err
}

const sumByDayBase = `
    SELECT bin_type, (logged_at AT TIME ZONE 'UTC')::date AS day, SUM(count)::bigint AS total
    FROM binwatch.waste_logs
    WHERE TRUE
`

// SumEventsByDay returns per-day, per-category event sums for the bounded
// range. Days with no events are absent; the engine densifies.
func (s *Store) SumEventsByDay(ctx context.Context, q engine.EventSumQuery) ([]engine.DayCategorySum, error) {
	sql, args := boundedQuery(sumByDayBase, q)
	sql += " GROUP BY bin_type, day ORDER BY day, bin_type"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make([]engine.DayCategorySum, 0)
	for rows.Next() {
		var sum engine.DayCategorySum
		if err := rows.Scan(&sum.Category, &sum.Day, &sum.Total); err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

const sumTotalBase = `
    SELECT bin_type, SUM(count)::bigint AS total
    FROM binwatch.waste_logs
    WHERE TRUE
`

// SumEventsTotal returns per-category event sums for the bounded range.
func (s *Store) SumEventsTotal(ctx context.Context, q engine.EventSumQuery) (engine.CategoryTotals, error) {
	sql, args := boundedQuery(sumTotalBase, q)
	sql += " GROUP BY bin_type"

	var totals engine.CategoryTotals
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return totals, err
	}
	defer rows.Close()

	for rows.Next() {
		var category engine.BinCategory
		var total int64
		if err := rows.Scan(&category, &total); err != nil {
			return totals, err
		}
		totals.Add(category, total)
	}
	return totals, rows.Err()
}

// boundedQuery appends logged_at bounds to a base query. Since is inclusive,
// Until exclusive.
func boundedQuery(base string, q engine.EventSumQuery) (string, []any) {
	args := make([]any, 0, 2)
	argPos := 1
	if q.Since != nil {
		base += " AND logged_at >= $" + strconv.Itoa(argPos)
		args = append(args, *q.Since)
		argPos++
	}
	if q.Until != nil {
		base += " AND logged_at < $" + strconv.Itoa(argPos)
		args = append(args, *q.Until)
	}
	return base, args
}
