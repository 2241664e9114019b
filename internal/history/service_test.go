package history

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/sketchin/redforecast/internal/domain"
)

type stubSnapshotRepo struct {
	snapshots map[string]*domain.Snapshot
}

func newStubSnapshotRepo() *stubSnapshotRepo {
	return &stubSnapshotRepo{snapshots: make(map[string]*domain.Snapshot)}
}

func (s *stubSnapshotRepo) Insert(_ context.Context, snapshot *domain.Snapshot) error {
	if _, ok := s.snapshots[snapshot.Date]; ok {
		return domain.ErrDuplicateDate
	}
	s.snapshots[snapshot.Date] = snapshot
	return nil
}

func (s *stubSnapshotRepo) Get(_ context.Context, date string) (*domain.Snapshot, error) {
	snapshot, ok := s.snapshots[date]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snapshot, nil
}

func (s *stubSnapshotRepo) Exists(_ context.Context, date string) (bool, error) {
	_, ok := s.snapshots[date]
	return ok, nil
}

func (s *stubSnapshotRepo) ClosestOnOrBefore(_ context.Context, date string) (string, error) {
	best := ""
	for stored := range s.snapshots {
		if stored <= date && stored > best {
			best = stored
		}
	}
	if best == "" {
		return "", domain.ErrNotFound
	}
	return best, nil
}

func (s *stubSnapshotRepo) ClosestOnOrAfter(_ context.Context, date string) (string, error) {
	best := ""
	for stored := range s.snapshots {
		if stored >= date && (best == "" || stored < best) {
			best = stored
		}
	}
	if best == "" {
		return "", domain.ErrNotFound
	}
	return best, nil
}

func (s *stubSnapshotRepo) ListDates(_ context.Context) ([]string, error) {
	dates := make([]string, 0, len(s.snapshots))
	for date := range s.snapshots {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func makeRecord(pairs ...string) *domain.Record {
	rec := domain.NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		rec.Set(pairs[i], pairs[i+1])
	}
	return rec
}

func opportunity(client, project, total string) *domain.Record {
	return makeRecord(
		"id", "1",
		"Client", client,
		"Project Name", project,
		"Start", "March",
		"Duration", "6",
		"Total Value", total,
	)
}

func TestCaptureIsIdempotentPerDate(t *testing.T) {
	repo := newStubSnapshotRepo()
	service := NewService(repo)

	records := []*domain.Record{opportunity("ACME", "Apollo", "100")}

	first, err := service.Capture(context.Background(), "2025-01-10", records)
	if err != nil {
		t.Fatalf("first capture returned error: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first capture to create a snapshot")
	}

	second, err := service.Capture(context.Background(), "2025-01-10", records)
	if err != nil {
		t.Fatalf("duplicate capture should not fail: %v", err)
	}
	if second.Created {
		t.Fatalf("expected duplicate capture to be skipped")
	}
}

func TestCaptureRejectsMalformedDate(t *testing.T) {
	service := NewService(newStubSnapshotRepo())

	_, err := service.Capture(context.Background(), "10/01/2025", nil)
	if !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestResolveBracketsTheRequestedWindow(t *testing.T) {
	repo := newStubSnapshotRepo()
	service := NewService(repo)

	for _, date := range []string{"2025-01-10", "2025-02-10"} {
		if _, err := service.Capture(context.Background(), date, []*domain.Record{opportunity("ACME", "Apollo", "100")}); err != nil {
			t.Fatalf("capture failed: %v", err)
		}
	}

	from, to, err := service.Resolve(context.Background(), "2025-01-15", "2025-02-01")
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if from.Resolved != "2025-01-10" {
		t.Fatalf("expected from to resolve backward to 2025-01-10, got %s", from.Resolved)
	}
	if to.Resolved != "2025-02-10" {
		t.Fatalf("expected to to resolve forward to 2025-02-10, got %s", to.Resolved)
	}
}

func TestResolveReordersDates(t *testing.T) {
	repo := newStubSnapshotRepo()
	service := NewService(repo)

	for _, date := range []string{"2025-01-10", "2025-02-10"} {
		if _, err := service.Capture(context.Background(), date, []*domain.Record{opportunity("ACME", "Apollo", "100")}); err != nil {
			t.Fatalf("capture failed: %v", err)
		}
	}

	from, to, err := service.Resolve(context.Background(), "2025-02-10", "2025-01-10")
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if from.Resolved != "2025-01-10" || to.Resolved != "2025-02-10" {
		t.Fatalf("expected reversed dates to be reordered, got %s / %s", from.Resolved, to.Resolved)
	}
}

func TestResolveReportsMissingSide(t *testing.T) {
	repo := newStubSnapshotRepo()
	service := NewService(repo)

	if _, err := service.Capture(context.Background(), "2025-06-01", []*domain.Record{opportunity("ACME", "Apollo", "100")}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	_, _, err := service.Resolve(context.Background(), "2025-01-01", "2025-02-01")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for the backward side, got %v", err)
	}
}

func TestCompareProducesAnnotatedDiff(t *testing.T) {
	repo := newStubSnapshotRepo()
	service := NewService(repo)

	older := []*domain.Record{
		opportunity("ACME", "Apollo", "100"),
		opportunity("Globex", "Borealis", "50"),
	}
	newer := []*domain.Record{
		opportunity("ACME", "Apollo", "150"),
		opportunity("Globex", "Borealis", "50"),
	}

	if _, err := service.Capture(context.Background(), "2025-01-10", older); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if _, err := service.Capture(context.Background(), "2025-02-10", newer); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	diff, err := service.Compare(context.Background(), "2025-01-15", "2025-02-01")
	if err != nil {
		t.Fatalf("compare returned error: %v", err)
	}

	if diff.From.Resolved != "2025-01-10" || diff.To.Resolved != "2025-02-10" {
		t.Fatalf("unexpected resolution: %+v", diff)
	}
	if diff.Counts[string(domain.StatusModified)] != 1 {
		t.Fatalf("expected one modified record, got %v", diff.Counts)
	}
	if len(diff.Opportunities) != 1 {
		t.Fatalf("expected unchanged records to be pruned, got %d", len(diff.Opportunities))
	}
	if diff.Opportunities[0].Status != domain.StatusModified {
		t.Fatalf("unexpected status: %s", diff.Opportunities[0].Status)
	}
}

func TestCompareRejectsMalformedDate(t *testing.T) {
	service := NewService(newStubSnapshotRepo())

	_, err := service.Compare(context.Background(), "not-a-date", "2025-02-01")
	if !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
