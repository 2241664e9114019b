package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sketchin/redforecast/internal/domain"

	"github.com/xuri/excelize/v2"
)

type stubLogRepo struct {
	entries []domain.IngestionLogEntry
}

func (s *stubLogRepo) Record(_ context.Context, entry domain.IngestionLogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogRepo) List(_ context.Context, _ string, _ int, _ int) ([]domain.IngestionLogEntry, error) {
	return s.entries, nil
}

// buildWorkbook writes the given data rows into the forecast sheet below
// the header and banner rows, matching the real workbook layout.
func buildWorkbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(DefaultSheetName); err != nil {
		t.Fatalf("failed to create sheet: %v", err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, bannerRows+2+i)
		if err != nil {
			t.Fatalf("failed to compute cell: %v", err)
		}
		if err := f.SetSheetRow(DefaultSheetName, cell, &rows[i]); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}
	return buf.Bytes()
}

// makeRow places values into their workbook column positions by field name.
func makeRow(t *testing.T, fields map[string]any) []any {
	t.Helper()

	row := make([]any, len(columnLayout))
	placed := 0
	for pos, name := range columnLayout {
		if v, ok := fields[name]; ok {
			row[pos] = v
			placed++
		}
	}
	if placed != len(fields) {
		t.Fatalf("some fields did not match the column layout: %v", fields)
	}
	return row
}

func TestParseBuildsOrderedRecords(t *testing.T) {
	logRepo := &stubLogRepo{}
	service := NewService(logRepo)

	payload := buildWorkbook(t,
		makeRow(t, map[string]any{
			"id":            "101",
			"Client":        "ACME",
			"Project Name":  "Apollo",
			"Status":        "Open",
			"Content Owner": "Dana",
			"Start":         "2025-03-05",
			"Duration":      "6",
			"Total Value":   150000.4,
			"Psensitivity":  75,
			"Design":        500.2,
			"January":       1200,
		}),
	)

	result, err := service.Parse(context.Background(), Request{
		FileName: "forecast.xlsx",
		Data:     bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if result.TotalRows != 1 || result.ParsedRows != 1 || result.SkippedRows != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}

	rec := result.Records[0]
	wantKeys := append(append([]string{}, scalarColumns...), "Factories split", "Revenues by month")
	gotKeys := rec.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("expected %d keys, got %d: %v", len(wantKeys), len(gotKeys), gotKeys)
	}
	for i, key := range wantKeys {
		if gotKeys[i] != key {
			t.Fatalf("key %d: expected %q, got %q", i, key, gotKeys[i])
		}
	}

	if got := rec.StringField("Total Value"); got != "150,000" {
		t.Fatalf("expected Total Value %q, got %q", "150,000", got)
	}
	if got := rec.StringField("Start"); got != "March" {
		t.Fatalf("expected Start %q, got %q", "March", got)
	}

	split, ok := rec.Value("Factories split").(*domain.Record)
	if !ok {
		t.Fatalf("expected Factories split to be a record")
	}
	if got := split.StringField("Design"); got != "500" {
		t.Fatalf("expected Design %q, got %q", "500", got)
	}
	if got := split.StringField("PCC"); got != "0" {
		t.Fatalf("expected blank PCC to render as %q, got %q", "0", got)
	}

	revenues, ok := rec.Value("Revenues by month").(*domain.Record)
	if !ok {
		t.Fatalf("expected Revenues by month to be a record")
	}
	if got := revenues.StringField("January"); got != "1,200" {
		t.Fatalf("expected January %q, got %q", "1,200", got)
	}
}

func TestParseSkipsRowsWithoutIdentity(t *testing.T) {
	logRepo := &stubLogRepo{}
	service := NewService(logRepo)

	payload := buildWorkbook(t,
		makeRow(t, map[string]any{"Client": "ACME", "Project Name": "Apollo"}),
		makeRow(t, map[string]any{"Total Value": 9000}),
	)

	result, err := service.Parse(context.Background(), Request{
		FileName: "forecast.xlsx",
		Data:     bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if result.ParsedRows != 1 || result.SkippedRows != 1 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if len(logRepo.entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logRepo.entries))
	}
	entry := logRepo.entries[0]
	if entry.RowNumber == nil || *entry.RowNumber != bannerRows+3 {
		t.Fatalf("unexpected row number in log entry: %+v", entry)
	}
}

func TestParseRejectsUnsupportedFormat(t *testing.T) {
	service := NewService(nil)

	_, err := service.Parse(context.Background(), Request{
		FileName: "forecast.csv",
		Data:     strings.NewReader("a,b,c"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseMissingSheet(t *testing.T) {
	service := NewService(nil)

	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to serialize workbook: %v", err)
	}
	_ = f.Close()

	_, err = service.Parse(context.Background(), Request{
		FileName: "forecast.xlsx",
		Data:     bytes.NewReader(buf.Bytes()),
	})
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestFormatThousands(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{950, "950"},
		{1200, "1,200"},
		{150000.4, "150,000"},
		{1234567.8, "1,234,568"},
		{-42000, "-42,000"},
	}
	for _, tc := range cases {
		if got := formatThousands(tc.in); got != tc.want {
			t.Fatalf("formatThousands(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestStartMonth(t *testing.T) {
	if got := startMonth("2025-03-05"); got != "March" {
		t.Fatalf("expected March, got %q", got)
	}
	if got := startMonth("11/15/2025"); got != "November" {
		t.Fatalf("expected November, got %q", got)
	}
	if got := startMonth("not a date"); got != "" {
		t.Fatalf("expected empty month, got %q", got)
	}
	if got := startMonth(""); got != "" {
		t.Fatalf("expected empty month, got %q", got)
	}
}
