package history

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sketchin/redforecast/internal/domain"
	"github.com/sketchin/redforecast/internal/repository"
)

// Service orchestrates snapshot capture and historical comparison on top
// of the snapshot repository.
type Service struct {
	snapshots repository.SnapshotRepository
}

// NewService creates a new history service.
func NewService(snapshots repository.SnapshotRepository) *Service {
	return &Service{snapshots: snapshots}
}

// CaptureResult reports the outcome of a capture attempt.
type CaptureResult struct {
	Date        string `json:"date"`
	Created     bool   `json:"created"`
	RecordCount int    `json:"recordCount"`
}

// Capture stores a snapshot for the given date unless one already
// exists. A duplicate date is reported, not treated as a failure: the
// store is append-only and one snapshot per day is the intended cadence.
func (s *Service) Capture(ctx context.Context, date string, records []*domain.Record) (CaptureResult, error) {
	result := CaptureResult{Date: date, RecordCount: len(records)}

	snapshot, err := domain.NewSnapshot(date, records)
	if err != nil {
		return result, err
	}

	if err := s.snapshots.Insert(ctx, snapshot); err != nil {
		if errors.Is(err, domain.ErrDuplicateDate) {
			log.Printf("[HISTORY] snapshot for %s already exists, skipping", date)
			return result, nil
		}
		return result, fmt.Errorf("failed to store snapshot: %w", err)
	}

	result.Created = true
	log.Printf("[HISTORY] captured snapshot for %s (%d opportunities)", date, len(records))
	return result, nil
}

// Resolution maps a requested date to the stored date that answered it.
type Resolution struct {
	Requested string `json:"requested"`
	Resolved  string `json:"resolved"`
}

// Resolve maps the requested comparison window onto stored snapshot
// dates: the from side resolves backward to the closest snapshot on or
// before it, the to side forward to the closest on or after it. A side
// with no snapshot in that direction yields ErrNotFound.
func (s *Service) Resolve(ctx context.Context, from, to string) (Resolution, Resolution, error) {
	var older, newer Resolution

	if err := domain.ValidateDate(from); err != nil {
		return older, newer, fmt.Errorf("invalid from date: %w", err)
	}
	if err := domain.ValidateDate(to); err != nil {
		return older, newer, fmt.Errorf("invalid to date: %w", err)
	}
	if from > to {
		from, to = to, from
	}

	resolvedFrom, err := s.snapshots.ClosestOnOrBefore(ctx, from)
	if err != nil {
		return older, newer, fmt.Errorf("no snapshot on or before %s: %w", from, err)
	}
	resolvedTo, err := s.snapshots.ClosestOnOrAfter(ctx, to)
	if err != nil {
		return older, newer, fmt.Errorf("no snapshot on or after %s: %w", to, err)
	}

	older = Resolution{Requested: from, Resolved: resolvedFrom}
	newer = Resolution{Requested: to, Resolved: resolvedTo}
	return older, newer, nil
}

// DiffResponse carries a completed comparison.
type DiffResponse struct {
	From          Resolution                `json:"from"`
	To            Resolution                `json:"to"`
	Opportunities []*domain.AnnotatedRecord `json:"opportunities"`
	Counts        map[string]int            `json:"counts"`
}

// Compare resolves both dates, loads the two snapshots, and runs the
// structural diff.
func (s *Service) Compare(ctx context.Context, from, to string) (*DiffResponse, error) {
	older, newer, err := s.Resolve(ctx, from, to)
	if err != nil {
		return nil, err
	}

	olderSnap, err := s.snapshots.Get(ctx, older.Resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", older.Resolved, err)
	}
	newerSnap, err := s.snapshots.Get(ctx, newer.Resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", newer.Resolved, err)
	}

	annotated, err := domain.Diff(olderSnap, newerSnap)
	if err != nil {
		return nil, fmt.Errorf("failed to diff snapshots %s and %s: %w", older.Resolved, newer.Resolved, err)
	}

	counts := make(map[string]int)
	for _, record := range annotated {
		counts[string(record.Status)]++
	}

	return &DiffResponse{
		From:          older,
		To:            newer,
		Opportunities: annotated,
		Counts:        counts,
	}, nil
}

// ListDates returns every stored snapshot date in ascending order.
func (s *Service) ListDates(ctx context.Context) ([]string, error) {
	dates, err := s.snapshots.ListDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dates: %w", err)
	}
	return dates, nil
}
