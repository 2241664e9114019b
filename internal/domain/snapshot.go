package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for snapshot keys. Dates in
// this layout compare lexicographically in chronological order.
const DateLayout = "2006-01-02"

// compositeKeySeparator joins the two identity fields of an opportunity.
const compositeKeySeparator = "__"

const (
	fieldClient      = "Client"
	fieldProjectName = "Project Name"
	fieldID          = "id"
)

// Snapshot is an immutable, dated capture of the full opportunity collection.
// Once written to the store it is never updated.
type Snapshot struct {
	Date    string
	Records []*Record
}

// NewSnapshot builds a snapshot after validating the date format.
func NewSnapshot(date string, records []*Record) (*Snapshot, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	return &Snapshot{Date: date, Records: records}, nil
}

// ValidateDate checks that a date is a calendar date in YYYY-MM-DD form.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// CompositeKey matches opportunities across snapshots by Client and Project
// Name instead of the raw id, which spreadsheet re-exports do not keep stable.
func CompositeKey(record *Record) string {
	return record.StringField(fieldClient) + compositeKeySeparator + record.StringField(fieldProjectName)
}

// PayloadJSON serializes the record collection in the stored payload shape.
func (s *Snapshot) PayloadJSON() ([]byte, error) {
	payload := NewRecord()
	opportunities := make([]any, len(s.Records))
	for i, record := range s.Records {
		opportunities[i] = record
	}
	payload.Set("Opportunities", opportunities)
	return payload.MarshalJSON()
}

// SnapshotFromPayload parses a stored payload back into a snapshot. A payload
// without the Opportunities collection is a schema mismatch, not an empty
// snapshot.
func SnapshotFromPayload(date string, payload []byte) (*Snapshot, error) {
	root, err := DecodeRecord(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload for %s: %w", date, err)
	}

	raw, ok := root.Get("Opportunities")
	if !ok {
		return nil, fmt.Errorf("payload for %s has no Opportunities collection: %w", date, ErrSchemaMismatch)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("Opportunities in payload for %s is not a sequence: %w", date, ErrSchemaMismatch)
	}

	records := make([]*Record, 0, len(items))
	for i, item := range items {
		record, ok := item.(*Record)
		if !ok {
			return nil, fmt.Errorf("opportunity %d in payload for %s is not a mapping: %w", i, date, ErrSchemaMismatch)
		}
		records = append(records, record)
	}

	return &Snapshot{Date: date, Records: records}, nil
}
