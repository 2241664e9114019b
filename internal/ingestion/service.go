package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sketchin/redforecast/internal/domain"
	"github.com/sketchin/redforecast/internal/repository"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrSheetNotFound is returned when the workbook lacks the forecast sheet.
	ErrSheetNotFound = errors.New("sheet not found in workbook")

	startLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01-02-06",
		"1-2-06",
		"01/02/2006",
		"1/2/2006",
		"2006/01/02",
		time.RFC3339,
	}
)

// Data rows start below the column header plus this many banner rows.
const bannerRows = 21

// DefaultSheetName is the worksheet holding the opportunity table.
const DefaultSheetName = "All opportunities"

// columnLayout maps workbook column positions to field names. Blank
// entries are spacer or unused columns and are discarded.
var columnLayout = []string{
	"", "", "id", "Client", "Contact Role", "Project Name", "", "", "Status", "",
	"PCC", "PE", "CPIS", "CBE", "Design", "Tech", "Others", "Total Value", "Sensitivity",
	"Psensitivity", "", "PPCC", "", "PPE", "", "PCPS", "", "PCBE", "", "Pdesign", "",
	"PTech", "", "", "", "", "", "", "Tender", "AdB", "Opportunity Owner",
	"Content Owner", "", "Start", "Duration", "", "January", "February", "March",
	"April", "May", "June", "July", "August", "September", "October", "November", "December",
	"", "Q1", "Q2", "Q3", "Q4", "", "FY", "", "", "Next years",
}

// scalarColumns is the output order for top-level opportunity fields.
var scalarColumns = []string{
	"id", "Client", "Project Name", "Status", "AdB", "Opportunity Owner",
	"Content Owner", "Start", "Duration", "Psensitivity", "Total Value",
}

// splitColumns are nested under "Factories split".
var splitColumns = []string{"PCC", "PE", "CPIS", "CBE", "Design", "Tech", "Others"}

// revenueColumns are nested under "Revenues by month".
var revenueColumns = []string{
	"January", "February", "March", "April", "May", "June", "July",
	"August", "September", "October", "November", "December",
	"Q1", "Q2", "Q3", "Q4", "FY",
}

// floatColumns are rendered as thousands-separated whole numbers.
var floatColumns = map[string]bool{
	"PCC": true, "PE": true, "CPIS": true, "CBE": true, "Design": true,
	"Tech": true, "Others": true, "Psensitivity": true, "Total Value": true,
	"January": true, "February": true, "March": true, "April": true,
	"May": true, "June": true, "July": true, "August": true,
	"September": true, "October": true, "November": true, "December": true,
	"Q1": true, "Q2": true, "Q3": true, "Q4": true, "FY": true,
}

// Service parses forecast workbooks into opportunity records.
type Service struct {
	logRepo repository.IngestionLogRepository
}

// NewService creates a new ingestion service.
func NewService(logRepo repository.IngestionLogRepository) *Service {
	return &Service{logRepo: logRepo}
}

// Request describes the ingestion input.
type Request struct {
	FileName  string
	SheetName string
	Data      io.Reader
}

// Result returns ingestion level metrics alongside the parsed records.
type Result struct {
	Records     []*domain.Record `json:"-"`
	TotalRows   int              `json:"totalRows"`
	ParsedRows  int              `json:"parsedRows"`
	SkippedRows int              `json:"skippedRows"`
}

// Parse reads the uploaded workbook and converts the opportunity table
// into ordered records ready for snapshot storage.
func (s *Service) Parse(ctx context.Context, req Request) (Result, error) {
	var result Result

	if req.Data == nil {
		return result, errors.New("data reader is required")
	}
	if ext := strings.ToLower(filepath.Ext(req.FileName)); ext != ".xlsx" && ext != ".xlsm" {
		return result, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return result, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return result, errors.New("file is empty")
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := req.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return result, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return result, fmt.Errorf("failed to read rows from sheet %q: %w", sheet, err)
	}

	// The sheet carries a header row plus banner rows before the data.
	dataStart := bannerRows + 1
	if len(rows) <= dataStart {
		return result, errors.New("no data rows found below the header")
	}

	for idx := dataStart; idx < len(rows); idx++ {
		row := padRow(rows[idx], len(columnLayout))
		if rowEmpty(row) {
			continue
		}
		result.TotalRows++

		record, rowErr := s.buildRecord(row)
		if rowErr != nil {
			result.SkippedRows++
			s.logRowError(ctx, req, sheet, idx+1, rowErr)
			continue
		}
		result.Records = append(result.Records, record)
		result.ParsedRows++
	}

	if len(result.Records) == 0 {
		return result, errors.New("no opportunities parsed from workbook")
	}
	return result, nil
}

// LoadWorkbook reads a workbook from disk. Used by the reload tool and
// by the daily capture job.
func (s *Service) LoadWorkbook(ctx context.Context, path, sheet string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	return s.Parse(ctx, Request{
		FileName:  filepath.Base(path),
		SheetName: sheet,
		Data:      file,
	})
}

// buildRecord converts a padded row into an ordered opportunity record:
// scalar fields first, then factory split and monthly revenues nested
// under their own keys.
func (s *Service) buildRecord(row []string) (*domain.Record, error) {
	cells := make(map[string]string, len(columnLayout))
	for pos, name := range columnLayout {
		if name == "" {
			continue
		}
		cells[name] = strings.TrimSpace(row[pos])
	}

	if cells["Client"] == "" && cells["Project Name"] == "" {
		return nil, errors.New("row has neither Client nor Project Name")
	}

	record := domain.NewRecord()
	for _, col := range scalarColumns {
		record.Set(col, renderCell(col, cells[col]))
	}

	split := domain.NewRecord()
	for _, col := range splitColumns {
		split.Set(col, renderCell(col, cells[col]))
	}
	record.Set("Factories split", split)

	revenues := domain.NewRecord()
	for _, col := range revenueColumns {
		revenues.Set(col, renderCell(col, cells[col]))
	}
	record.Set("Revenues by month", revenues)

	return record, nil
}

// renderCell normalizes a raw cell: numeric columns get thousands
// separators with no decimals (zero when unparseable), Start becomes an
// English month name, everything else passes through trimmed.
func renderCell(col, raw string) any {
	if col == "Start" {
		return startMonth(raw)
	}
	if floatColumns[col] {
		v, err := parseNumber(raw)
		if err != nil {
			return "0"
		}
		return formatThousands(v)
	}
	return raw
}

// startMonth converts a start cell to its English month name. Cells can
// hold a formatted date or an Excel serial. Unparseable cells yield "".
func startMonth(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range startLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Month().String()
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		if ts, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return ts.Month().String()
		}
	}
	return ""
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0, errors.New("empty cell")
	}
	return strconv.ParseFloat(raw, 64)
}

// formatThousands renders a float as a whole number with comma
// separators, e.g. 1234567.8 -> "1,234,568".
func formatThousands(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (s *Service) logRowError(ctx context.Context, req Request, sheet string, rowNumber int, err error) {
	if s.logRepo == nil || err == nil {
		return
	}
	entry := domain.IngestionLogEntry{
		FileName:     req.FileName,
		SheetName:    sheet,
		RowNumber:    &rowNumber,
		ErrorMessage: err.Error(),
	}
	_ = s.logRepo.Record(ctx, entry)
}
