package repository

import (
	"context"

	"github.com/sketchin/redforecast/internal/domain"
)

// SnapshotRepository defines the append-only forecast snapshot store. There
// is deliberately no update or delete: historical diffs must stay
// reproducible.
type SnapshotRepository interface {
	// Insert persists a snapshot for its date. Inserting a date that already
	// exists returns domain.ErrDuplicateDate; the date column's unique
	// constraint makes the check atomic under concurrent writers.
	Insert(ctx context.Context, snapshot *domain.Snapshot) error

	// Get returns the snapshot stored for an exact date, or domain.ErrNotFound.
	Get(ctx context.Context, date string) (*domain.Snapshot, error)

	// Exists reports whether a snapshot is stored for the date.
	Exists(ctx context.Context, date string) (bool, error)

	// ClosestOnOrBefore returns the latest stored date <= the given date, or
	// domain.ErrNotFound when no snapshot exists at or before it.
	ClosestOnOrBefore(ctx context.Context, date string) (string, error)

	// ClosestOnOrAfter returns the earliest stored date >= the given date, or
	// domain.ErrNotFound when no snapshot exists at or after it.
	ClosestOnOrAfter(ctx context.Context, date string) (string, error)

	// ListDates returns all stored snapshot dates in ascending order.
	ListDates(ctx context.Context) ([]string, error)
}

// IngestionLogRepository records row level issues raised while reading the
// forecast workbook.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, fileName string, limit int, offset int) ([]domain.IngestionLogEntry, error)
}
