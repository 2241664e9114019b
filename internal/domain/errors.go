package domain

import "errors"

var (
	// ErrDuplicateDate is returned when a snapshot insert collides with an
	// existing snapshot for the same date. The store is append-only and never
	// silently overwrites.
	ErrDuplicateDate = errors.New("snapshot already exists for date")

	// ErrNotFound is returned when no snapshot resolves for a requested date.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrSchemaMismatch is returned when a stored record collection is missing
	// fields the diff engine depends on. It indicates a contract break between
	// the ingestion and diff stages and must be surfaced, not coerced.
	ErrSchemaMismatch = errors.New("snapshot schema mismatch")
)
