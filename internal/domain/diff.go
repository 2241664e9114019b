package domain

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// RecordStatus classifies an opportunity in a diff result.
type RecordStatus string

const (
	StatusNew       RecordStatus = "New"
	StatusDeleted   RecordStatus = "Deleted"
	StatusModified  RecordStatus = "Modified"
	StatusUnchanged RecordStatus = "Unchanged"
)

// Annotation node field names. A changed leaf carries oldest/newest/difference;
// an unchanged leaf carries value.
const (
	nodeOldest     = "oldest"
	nodeNewest     = "newest"
	nodeDifference = "difference"
	nodeValue      = "value"
)

const (
	fieldStatus      = "status"
	fieldExplanation = "difference_explanation"
	fieldTotalValue  = "Total Value"
	fieldStart       = "Start"
	fieldDuration    = "Duration"
)

// excludedFields are never compared and never appear in diff output: the
// factory-split columns, the per-month and per-quarter revenue columns, the
// derived aggregates, and the raw id.
var excludedFields = map[string]struct{}{
	"PCC": {}, "PE": {}, "CPIS": {}, "Design": {}, "Tech": {}, "Others": {},
	"PPCC": {}, "PPE": {}, "PCPS": {}, "PCBE": {}, "Pdesign": {}, "PTech": {},
	"January": {}, "February": {}, "March": {}, "April": {}, "May": {}, "June": {},
	"July": {}, "August": {}, "September": {}, "October": {}, "November": {}, "December": {},
	"Q1": {}, "Q2": {}, "Q3": {}, "Q4": {}, "FY": {}, "Next years": {},
	"Factories split": {}, "Revenues by month": {},
	"id": {},
}

func isExcludedField(name string) bool {
	if _, ok := excludedFields[name]; ok {
		return true
	}
	return strings.HasSuffix(name, "_id") || strings.HasSuffix(name, "Id")
}

// AnnotatedRecord is the diff output for one opportunity: the annotated field
// tree plus the identity, status, and (for New/Deleted/Modified) a
// human-readable explanation.
type AnnotatedRecord struct {
	Key         string
	ID          any
	Status      RecordStatus
	Explanation string
	Fields      *Record
}

// MarshalJSON emits the record in the wire shape: id, status, explanation,
// then the annotated fields in their traversal order.
func (a *AnnotatedRecord) MarshalJSON() ([]byte, error) {
	out := NewRecord()
	out.Set(fieldID, a.ID)
	out.Set(fieldStatus, string(a.Status))
	if a.Explanation != "" {
		out.Set(fieldExplanation, a.Explanation)
	}
	for _, key := range a.Fields.Keys() {
		out.Set(key, a.Fields.Value(key))
	}
	return out.MarshalJSON()
}

// Diff compares two snapshots keyed by Client + Project Name and returns one
// annotated record per surviving key. Unchanged records are pruned whenever
// the batch contains at least one real change; an all-Unchanged batch is
// returned in full so "no changes" is an explicit answer.
func Diff(older, newer *Snapshot) ([]*AnnotatedRecord, error) {
	olderByKey, olderKeys, err := indexByCompositeKey(older)
	if err != nil {
		return nil, err
	}
	newerByKey, newerKeys, err := indexByCompositeKey(newer)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(olderKeys)+len(newerKeys))
	keys = append(keys, olderKeys...)
	for _, key := range newerKeys {
		if _, ok := olderByKey[key]; !ok {
			keys = append(keys, key)
		}
	}

	annotated := make([]*AnnotatedRecord, 0, len(keys))
	for _, key := range keys {
		o := olderByKey[key]
		n := newerByKey[key]

		// Zeroed-out legacy rows in the older snapshot are pure noise.
		if o != nil && o.Value(fieldTotalValue) == "0" {
			continue
		}

		switch {
		case o != nil && n != nil:
			// Nothing to compare when neither side carries scheduling data.
			if isEmpty(o.Value(fieldStart)) && isEmpty(n.Value(fieldStart)) &&
				isEmpty(o.Value(fieldDuration)) && isEmpty(n.Value(fieldDuration)) {
				continue
			}

			record := &AnnotatedRecord{
				Key:    key,
				ID:     recordID(n, o),
				Fields: annotateRecord(o, n),
			}
			if containsChange(record.Fields) {
				record.Status = StatusModified
				record.Explanation = Explain(record)
			} else {
				record.Status = StatusUnchanged
			}
			annotated = append(annotated, record)

		case o != nil:
			annotated = append(annotated, &AnnotatedRecord{
				Key:         key,
				ID:          recordID(o, nil),
				Status:      StatusDeleted,
				Explanation: fmt.Sprintf("This opportunity was present in %s but removed in %s", older.Date, newer.Date),
				Fields:      filterExcludedFields(o),
			})

		case n != nil:
			annotated = append(annotated, &AnnotatedRecord{
				Key:         key,
				ID:          recordID(n, nil),
				Status:      StatusNew,
				Explanation: fmt.Sprintf("This is a new opportunity added in %s", newer.Date),
				Fields:      filterExcludedFields(n),
			})
		}
	}

	return filterUnchanged(annotated), nil
}

// indexByCompositeKey builds the key lookup for one snapshot. When two records
// share a key the later one wins, matching the stored payload's iteration
// order. A record with neither identity field present is a schema mismatch.
func indexByCompositeKey(snapshot *Snapshot) (map[string]*Record, []string, error) {
	byKey := make(map[string]*Record, len(snapshot.Records))
	keys := make([]string, 0, len(snapshot.Records))
	for i, record := range snapshot.Records {
		if !record.Has(fieldClient) && !record.Has(fieldProjectName) {
			return nil, nil, fmt.Errorf("record %d in snapshot %s has no identity fields: %w", i, snapshot.Date, ErrSchemaMismatch)
		}
		key := CompositeKey(record)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = record
	}
	return byKey, keys, nil
}

func recordID(primary, fallback *Record) any {
	if primary != nil {
		if id, ok := primary.Get(fieldID); ok {
			return id
		}
	}
	if fallback != nil {
		if id, ok := fallback.Get(fieldID); ok {
			return id
		}
	}
	return ""
}

// filterUnchanged drops Unchanged records once the batch has any real change.
func filterUnchanged(records []*AnnotatedRecord) []*AnnotatedRecord {
	hasChanges := false
	for _, record := range records {
		if record.Status != StatusUnchanged {
			hasChanges = true
			break
		}
	}
	if !hasChanges {
		return records
	}

	filtered := make([]*AnnotatedRecord, 0, len(records))
	for _, record := range records {
		if record.Status != StatusUnchanged {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// annotateRecord deep-annotates two versions of the same opportunity,
// skipping excluded fields. Field order follows the older record, with fields
// new to the newer record appended after.
func annotateRecord(o, n *Record) *Record {
	out := NewRecord()
	for _, key := range o.Keys() {
		if isExcludedField(key) {
			continue
		}
		out.Set(key, deepAnnotate(o.Value(key), n.Value(key), key))
	}
	for _, key := range n.Keys() {
		if isExcludedField(key) || out.Has(key) {
			continue
		}
		out.Set(key, deepAnnotate(o.Value(key), n.Value(key), key))
	}
	return out
}

// deepAnnotate compares one field of the older and newer record. Start and
// Duration carry an asymmetric rule: gaining a value is reported, losing one
// is not, so legacy blank cells do not flood the diff with false positives.
func deepAnnotate(o, n any, fieldKey string) *Record {
	if fieldKey == fieldStart || fieldKey == fieldDuration {
		switch {
		case isEmpty(o) && isEmpty(n):
			return unchangedNode(nil)
		case isEmpty(o) && !isEmpty(n):
			return changeNode(o, n, n)
		case reflect.DeepEqual(o, n) || (!isEmpty(o) && isEmpty(n)):
			return unchangedNode(o)
		default:
			return annotateLeaf(o, n)
		}
	}

	if isEmpty(o) && isEmpty(n) {
		return unchangedNode(nil)
	}

	switch {
	case o == nil:
		return changeNode(nil, n, n)
	case n == nil:
		return changeNode(o, nil, nil)
	}

	if oRec, ok := o.(*Record); ok {
		if nRec, ok := n.(*Record); ok {
			out := NewRecord()
			for _, key := range oRec.Keys() {
				if isExcludedField(key) {
					continue
				}
				out.Set(key, deepAnnotate(oRec.Value(key), nRec.Value(key), key))
			}
			for _, key := range nRec.Keys() {
				if isExcludedField(key) || out.Has(key) {
					continue
				}
				out.Set(key, deepAnnotate(oRec.Value(key), nRec.Value(key), key))
			}
			return out
		}
	}

	if oList, ok := o.([]any); ok {
		if nList, ok := n.([]any); ok {
			length := len(oList)
			if len(nList) > length {
				length = len(nList)
			}
			items := make([]any, 0, length)
			for i := 0; i < length; i++ {
				var oItem, nItem any
				if i < len(oList) {
					oItem = oList[i]
				}
				if i < len(nList) {
					nItem = nList[i]
				}
				items = append(items, deepAnnotate(oItem, nItem, ""))
			}
			return unchangedNode(items)
		}
	}

	return annotateLeaf(o, n)
}

// annotateLeaf compares two scalar values. The difference mirrors the newest
// value, except for numeric pairs where it is the signed delta.
func annotateLeaf(o, n any) *Record {
	if reflect.DeepEqual(o, n) {
		return unchangedNode(o)
	}
	if oNum, ok := numericValue(o); ok {
		if nNum, ok := numericValue(n); ok {
			return changeNode(o, n, nNum-oNum)
		}
	}
	return changeNode(o, n, n)
}

func unchangedNode(v any) *Record {
	node := NewRecord()
	node.Set(nodeValue, v)
	return node
}

func changeNode(oldest, newest, difference any) *Record {
	node := NewRecord()
	node.Set(nodeOldest, oldest)
	node.Set(nodeNewest, newest)
	node.Set(nodeDifference, difference)
	return node
}

// isChangeLeaf reports whether an annotation node is a changed leaf.
func isChangeLeaf(node *Record) bool {
	return node.Has(nodeOldest) && node.Has(nodeNewest)
}

// containsChange searches an annotated tree for any changed leaf.
func containsChange(node any) bool {
	switch typed := node.(type) {
	case *Record:
		if isChangeLeaf(typed) {
			return true
		}
		for _, key := range typed.Keys() {
			if containsChange(typed.Value(key)) {
				return true
			}
		}
	case []any:
		for _, item := range typed {
			if containsChange(item) {
				return true
			}
		}
	}
	return false
}

// filterExcludedFields copies a record without the excluded fields, for
// New/Deleted output where the raw record is emitted as-is.
func filterExcludedFields(record *Record) *Record {
	out := NewRecord()
	for _, key := range record.Keys() {
		if isExcludedField(key) {
			continue
		}
		out.Set(key, record.Value(key))
	}
	return out
}

// isEmpty reports whether a value carries no information: nil, a blank or
// whitespace-only string, an empty sequence or mapping, or a NaN sentinel.
func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case *Record:
		return typed == nil || typed.Len() == 0
	case float64:
		return math.IsNaN(typed)
	}
	return false
}

// numericValue extracts a float from a value for delta computation. Strings
// formatted for display ("1,234") count as numeric after stripping the
// thousands separators.
func numericValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		if math.IsNaN(typed) {
			return 0, false
		}
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		trimmed := strings.ReplaceAll(strings.TrimSpace(typed), ",", "")
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(parsed) {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// formatNumber renders a float without a trailing fractional part when whole.
func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Numeric reports the numeric reading of a field value, if it has one.
// Display strings with thousands separators ("1,234") parse as numbers.
func Numeric(value any) (float64, bool) {
	return numericValue(value)
}
