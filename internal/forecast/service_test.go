package forecast

import (
	"errors"
	"strings"
	"testing"

	"github.com/sketchin/redforecast/internal/domain"
)

func makeOpportunity(id, client, project, start, owner, status, sensitivity, total, design string) *domain.Record {
	rec := domain.NewRecord()
	rec.Set("id", id)
	rec.Set("Client", client)
	rec.Set("Project Name", project)
	rec.Set("Status", status)
	rec.Set("Content Owner", owner)
	rec.Set("Start", start)
	rec.Set("Duration", "6")
	rec.Set("Psensitivity", sensitivity)
	rec.Set("Total Value", total)

	split := domain.NewRecord()
	split.Set("PCC", "0")
	split.Set("Design", design)
	rec.Set("Factories split", split)
	return rec
}

func TestGetForecastNotLoaded(t *testing.T) {
	service := NewService()
	if _, err := service.GetForecast(nil, "All"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestGetForecastFiltersByMonthAndFactory(t *testing.T) {
	service := NewService()
	service.SetRecords([]*domain.Record{
		makeOpportunity("1", "ACME", "Apollo", "March", "Dana", "Open", "50", "100,000", "40,000"),
		makeOpportunity("2", "Globex", "Borealis", "March", "Lee", "Open", "80", "20,000", "0"),
		makeOpportunity("3", "Initech", "Chronos", "April", "Dana", "Open", "100", "5,000", "5,000"),
	})

	text, err := service.GetForecast([]string{"March"}, "Design")
	if err != nil {
		t.Fatalf("GetForecast returned error: %v", err)
	}

	if !strings.Contains(text, "Forecast for month: March | Factory: Design") {
		t.Fatalf("missing header in output:\n%s", text)
	}
	if !strings.Contains(text, "Apollo") {
		t.Fatalf("expected Apollo in output:\n%s", text)
	}
	if strings.Contains(text, "Borealis") {
		t.Fatalf("Borealis has no Design value and should be excluded:\n%s", text)
	}
	if strings.Contains(text, "Chronos") {
		t.Fatalf("Chronos starts in April and should be excluded:\n%s", text)
	}
	if !strings.Contains(text, "Total opportunities: 1") {
		t.Fatalf("unexpected summary:\n%s", text)
	}
	if !strings.Contains(text, "Total value: 40,000") {
		t.Fatalf("expected Design slice total:\n%s", text)
	}
	// 40,000 weighted by the 50 sensitivity.
	if !strings.Contains(text, "Weighted value: 20,000") {
		t.Fatalf("expected weighted total:\n%s", text)
	}
}

func TestGetForecastNoMatches(t *testing.T) {
	service := NewService()
	service.SetRecords([]*domain.Record{
		makeOpportunity("1", "ACME", "Apollo", "March", "Dana", "Open", "50", "100,000", "40,000"),
	})

	text, err := service.GetForecast([]string{"December"}, "All")
	if err != nil {
		t.Fatalf("GetForecast returned error: %v", err)
	}
	if !strings.Contains(text, "No matching opportunities found.") {
		t.Fatalf("expected no-match message:\n%s", text)
	}
}

func TestFilterOpportunities(t *testing.T) {
	service := NewService()
	service.SetRecords([]*domain.Record{
		makeOpportunity("1", "ACME", "Apollo", "March", "Dana", "Open", "50", "100,000", "40,000"),
		makeOpportunity("2", "Globex", "Borealis", "March", "Lee", "Won", "80", "20,000", "0"),
		makeOpportunity("3", "Initech", "Chronos", "April", "Dana", "Open", "95", "5,000", "5,000"),
	})

	text, err := service.FilterOpportunities("All", "Dana", "All", 0, 90, "Open")
	if err != nil {
		t.Fatalf("FilterOpportunities returned error: %v", err)
	}

	if !strings.Contains(text, "Apollo") {
		t.Fatalf("expected Apollo in output:\n%s", text)
	}
	if strings.Contains(text, "Borealis") {
		t.Fatalf("Borealis is owned by Lee and Won:\n%s", text)
	}
	if strings.Contains(text, "Chronos") {
		t.Fatalf("Chronos sensitivity 95 exceeds the bound:\n%s", text)
	}
	if !strings.Contains(text, "Total projects: 1") {
		t.Fatalf("unexpected summary:\n%s", text)
	}
	if !strings.Contains(text, "Total value: 100,000") {
		t.Fatalf("unexpected total:\n%s", text)
	}
}

func TestFilterOpportunitiesNoMatch(t *testing.T) {
	service := NewService()
	service.SetRecords([]*domain.Record{
		makeOpportunity("1", "ACME", "Apollo", "March", "Dana", "Open", "50", "100,000", "40,000"),
	})

	text, err := service.FilterOpportunities("All", "Nobody", "All", 0, -1, "All")
	if err != nil {
		t.Fatalf("FilterOpportunities returned error: %v", err)
	}
	if text != "No matching opportunities found." {
		t.Fatalf("unexpected output: %q", text)
	}
}
