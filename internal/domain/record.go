package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is an insertion-ordered mapping from field name to value. Values are
// scalars (string, float64, bool, nil), nested *Record mappings, or []any
// sequences. Field order is significant: explanations are rendered in the
// order fields were ingested, and the order must survive a storage round trip.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores a value under the given field name. A new field is appended at
// the end; an existing field keeps its position.
func (r *Record) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under the field name.
func (r *Record) Get(key string) (any, bool) {
	value, ok := r.values[key]
	return value, ok
}

// Value returns the stored value, or nil when the field is absent.
func (r *Record) Value(key string) any {
	return r.values[key]
}

// Has reports whether the field is present.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Clone returns a shallow copy of the record. Nested records and sequences
// are shared; snapshots are treated as immutable once built.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, key := range r.keys {
		out.Set(key, r.values[key])
	}
	return out
}

// StringField returns the field value as a string, or "" when the field is
// absent or not a string.
func (r *Record) StringField(key string) string {
	if s, ok := r.values[key].(string); ok {
		return s
	}
	return ""
}

// MarshalJSON writes the record as a JSON object with fields in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %s: %w", key, err)
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving field order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	value, err := decodeValue(dec)
	if err != nil {
		return err
	}
	rec, ok := value.(*Record)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", value)
	}
	*r = *rec
	return nil
}

// DecodeRecord parses a JSON object into an ordered record.
func DecodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := rec.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch typed := token.(type) {
	case json.Delim:
		switch typed {
		case '{':
			rec := NewRecord()
			for dec.More() {
				keyToken, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyToken.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyToken)
				}
				value, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				rec.Set(key, value)
			}
			if _, err := dec.Token(); err != nil { // closing brace
				return nil, err
			}
			return rec, nil
		case '[':
			var items []any
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // closing bracket
				return nil, err
			}
			if items == nil {
				items = []any{}
			}
			return items, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", typed)
		}
	default:
		// string, float64, bool, or nil
		return token, nil
	}
}
