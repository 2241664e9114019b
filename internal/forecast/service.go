package forecast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sketchin/redforecast/internal/domain"
)

// ErrNotLoaded is returned when no workbook has been loaded yet.
var ErrNotLoaded = errors.New("forecast data not loaded")

// Service holds the in-memory view of the latest parsed workbook and
// answers aggregation and filtering queries over it. Reads and reloads
// can happen concurrently.
type Service struct {
	mu       sync.RWMutex
	records  []*domain.Record
	loadedAt time.Time
}

// NewService creates an empty forecast service.
func NewService() *Service {
	return &Service{}
}

// SetRecords replaces the current view with a freshly parsed workbook.
func (s *Service) SetRecords(records []*domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.loadedAt = time.Now()
}

// Records returns the current view.
func (s *Service) Records() []*domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// LoadedAt reports when the view was last replaced.
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// GetForecast renders the opportunities starting in the given months,
// optionally restricted to one factory. An empty month list means the
// current month. The output is preformatted text for direct display.
func (s *Service) GetForecast(months []string, factory string) (string, error) {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	if records == nil {
		return "", ErrNotLoaded
	}
	if len(months) == 0 {
		months = []string{time.Now().Month().String()}
	}
	if factory == "" {
		factory = "All"
	}

	var b strings.Builder
	for _, month := range months {
		matched := 0
		var monthTotal, weightedTotal float64

		header := fmt.Sprintf("Forecast for month: %s", month)
		if factory != "All" {
			header += fmt.Sprintf(" | Factory: %s", factory)
		}
		b.WriteString("\n" + header + "\n\n")

		for _, rec := range records {
			if rec.StringField("Start") != month {
				continue
			}
			amount, ok := opportunityAmount(rec, factory)
			if !ok {
				continue
			}
			matched++
			monthTotal += amount
			if sensitivity, ok := domain.Numeric(rec.Value("Psensitivity")); ok {
				weightedTotal += amount * sensitivity / 100
			}

			b.WriteString(fmt.Sprintf("Opportunity ID: %v\n", rec.Value("id")))
			b.WriteString(fmt.Sprintf("  Client       : %v\n", rec.Value("Client")))
			b.WriteString(fmt.Sprintf("  Project Name : %v\n", rec.Value("Project Name")))
			b.WriteString(fmt.Sprintf("  Duration     : %v\n", rec.Value("Duration")))
			b.WriteString(fmt.Sprintf("  Total Value  : %v\n", rec.Value("Total Value")))
			if factory != "All" {
				b.WriteString(fmt.Sprintf("  %-13s: %s\n", factory, formatAmount(amount)))
			}
			b.WriteString("\n")
		}

		if matched == 0 {
			b.WriteString("No matching opportunities found.\n")
			continue
		}
		b.WriteString("Summary:\n")
		b.WriteString(fmt.Sprintf("  Total opportunities: %d\n", matched))
		b.WriteString(fmt.Sprintf("  Total value: %s\n", formatAmount(monthTotal)))
		b.WriteString(fmt.Sprintf("  Weighted value: %s\n", formatAmount(weightedTotal)))
	}

	return strings.TrimSpace(b.String()), nil
}

// FilterOpportunities renders the opportunities matching the given
// criteria. "All" disables a filter; a negative toSensitivity leaves the
// upper bound open.
func (s *Service) FilterOpportunities(month, contentOwner, factory string, fromSensitivity, toSensitivity float64, status string) (string, error) {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	if records == nil {
		return "", ErrNotLoaded
	}

	var matched []*domain.Record
	for _, rec := range records {
		if month != "" && month != "All" && rec.StringField("Start") != month {
			continue
		}
		if contentOwner != "" && contentOwner != "All" && rec.StringField("Content Owner") != contentOwner {
			continue
		}
		if factory != "" && factory != "All" {
			if _, ok := opportunityAmount(rec, factory); !ok {
				continue
			}
		}
		sensitivity, _ := domain.Numeric(rec.Value("Psensitivity"))
		if sensitivity < fromSensitivity {
			continue
		}
		if toSensitivity >= 0 && sensitivity > toSensitivity {
			continue
		}
		if status != "" && status != "All" && rec.StringField("Status") != status {
			continue
		}
		matched = append(matched, rec)
	}

	if len(matched) == 0 {
		return "No matching opportunities found.", nil
	}

	var b strings.Builder
	b.WriteString("Opportunities")
	if month != "" && month != "All" {
		b.WriteString(fmt.Sprintf(" for month: %s", month))
	}
	if contentOwner != "" && contentOwner != "All" {
		b.WriteString(fmt.Sprintf(" | Content Owner: %s", contentOwner))
	}
	if status != "" && status != "All" {
		b.WriteString(fmt.Sprintf(" | Status: %s", status))
	}
	b.WriteString("\n\n")

	var totalValue float64
	for _, rec := range matched {
		b.WriteString(fmt.Sprintf("Opportunity ID: %v\n", rec.Value("id")))
		b.WriteString(fmt.Sprintf("  Client       : %v\n", rec.Value("Client")))
		b.WriteString(fmt.Sprintf("  Project Name : %v\n", rec.Value("Project Name")))
		b.WriteString(fmt.Sprintf("  Status       : %v\n", rec.Value("Status")))
		b.WriteString(fmt.Sprintf("  Sensitivity  : %v\n", rec.Value("Psensitivity")))
		b.WriteString(fmt.Sprintf("  Start        : %v\n", rec.Value("Start")))
		b.WriteString(fmt.Sprintf("  Duration     : %v\n", rec.Value("Duration")))
		b.WriteString(fmt.Sprintf("  Total Value  : %v\n\n", rec.Value("Total Value")))
		if v, ok := domain.Numeric(rec.Value("Total Value")); ok {
			totalValue += v
		}
	}

	b.WriteString("Summary:\n")
	b.WriteString(fmt.Sprintf("  Total projects: %d\n", len(matched)))
	b.WriteString(fmt.Sprintf("  Total value: %s", formatAmount(totalValue)))

	return b.String(), nil
}

// opportunityAmount resolves the value of an opportunity for the given
// factory. "All" means the opportunity's Total Value; otherwise the
// factory's slice of the split, present only when greater than zero.
func opportunityAmount(rec *domain.Record, factory string) (float64, bool) {
	if factory == "" || factory == "All" {
		v, ok := domain.Numeric(rec.Value("Total Value"))
		return v, ok
	}
	split, ok := rec.Value("Factories split").(*domain.Record)
	if !ok {
		return 0, false
	}
	v, ok := domain.Numeric(split.Value(factory))
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func formatAmount(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
