package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sketchin/redforecast/internal/domain"
)

// uniqueViolation is the Postgres error code raised by the unique constraint
// on snapshot_date.
const uniqueViolation = "23505"

// snapshotRepository implements SnapshotRepository on Postgres.
type snapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a snapshot repository backed by pgxpool.
func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepository{pool: pool}
}

func (r *snapshotRepository) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	if err := domain.ValidateDate(snapshot.Date); err != nil {
		return err
	}

	payload, err := snapshot.PayloadJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot payload: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO forecast_snapshots (id, snapshot_date, payload, record_count)
		 VALUES ($1, $2::date, $3::json, $4)`,
		uuid.New(),
		snapshot.Date,
		string(payload),
		len(snapshot.Records),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("date %s: %w", snapshot.Date, domain.ErrDuplicateDate)
		}
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

func (r *snapshotRepository) Get(ctx context.Context, date string) (*domain.Snapshot, error) {
	if err := domain.ValidateDate(date); err != nil {
		return nil, err
	}

	var payload string
	err := r.pool.QueryRow(
		ctx,
		`SELECT payload::text FROM forecast_snapshots WHERE snapshot_date = $1::date`,
		date,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("date %s: %w", date, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return domain.SnapshotFromPayload(date, []byte(payload))
}

func (r *snapshotRepository) Exists(ctx context.Context, date string) (bool, error) {
	if err := domain.ValidateDate(date); err != nil {
		return false, err
	}

	var count int64
	err := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM forecast_snapshots WHERE snapshot_date = $1::date`,
		date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot existence: %w", err)
	}

	return count > 0, nil
}

func (r *snapshotRepository) ClosestOnOrBefore(ctx context.Context, date string) (string, error) {
	return r.closestDate(
		ctx,
		date,
		`SELECT to_char(snapshot_date, 'YYYY-MM-DD')
		 FROM forecast_snapshots
		 WHERE snapshot_date <= $1::date
		 ORDER BY snapshot_date DESC
		 LIMIT 1`,
	)
}

func (r *snapshotRepository) ClosestOnOrAfter(ctx context.Context, date string) (string, error) {
	return r.closestDate(
		ctx,
		date,
		`SELECT to_char(snapshot_date, 'YYYY-MM-DD')
		 FROM forecast_snapshots
		 WHERE snapshot_date >= $1::date
		 ORDER BY snapshot_date ASC
		 LIMIT 1`,
	)
}

func (r *snapshotRepository) closestDate(ctx context.Context, date string, query string) (string, error) {
	if err := domain.ValidateDate(date); err != nil {
		return "", err
	}

	var resolved string
	err := r.pool.QueryRow(ctx, query, date).Scan(&resolved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("no snapshot near %s: %w", date, domain.ErrNotFound)
		}
		return "", fmt.Errorf("failed to resolve closest date: %w", err)
	}

	return resolved, nil
}

func (r *snapshotRepository) ListDates(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT to_char(snapshot_date, 'YYYY-MM-DD')
		 FROM forecast_snapshots
		 ORDER BY snapshot_date ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dates: %w", err)
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var date string
		if scanErr := rows.Scan(&date); scanErr != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", scanErr)
		}
		dates = append(dates, date)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate snapshot dates: %w", rowsErr)
	}

	return dates, nil
}
