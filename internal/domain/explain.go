package domain

import (
	"fmt"
	"strings"

	"github.com/sketchin/redforecast/pkg/fieldpath"
)

// explanationFallback is emitted when a record classifies as Modified but no
// changed leaf is reachable during the walk.
const explanationFallback = "No specific differences found"

// Explain renders a human-readable list of field-level changes for an
// annotated record: one line per changed leaf, in field traversal order.
func Explain(record *AnnotatedRecord) string {
	lines := explainNode(record.Fields, "")
	if len(lines) == 0 {
		return explanationFallback
	}
	return strings.Join(lines, "\n")
}

func explainNode(node any, path string) []string {
	switch typed := node.(type) {
	case *Record:
		if isChangeLeaf(typed) {
			name := path
			if name == "" {
				name = "Field"
			}
			return []string{explainLeaf(name, typed.Value(nodeOldest), typed.Value(nodeNewest))}
		}
		// Sequence annotations are wrapped as {value: [...]}; the wrapper is
		// not part of the field path.
		if typed.Len() == 1 && typed.Has(nodeValue) {
			return explainNode(typed.Value(nodeValue), path)
		}
		var lines []string
		for _, key := range typed.Keys() {
			if key == fieldID || key == fieldStatus || key == fieldExplanation {
				continue
			}
			lines = append(lines, explainNode(typed.Value(key), fieldpath.Child(path, key))...)
		}
		return lines
	case []any:
		var lines []string
		for i, item := range typed {
			lines = append(lines, explainNode(item, fieldpath.Index(path, i))...)
		}
		return lines
	}
	return nil
}

func explainLeaf(path string, oldVal, newVal any) string {
	if oldNum, ok := numericValue(oldVal); ok {
		if newNum, ok := numericValue(newVal); ok {
			delta := newNum - oldNum
			if delta > 0 {
				return fmt.Sprintf("%s increased from %v to %v (+%s)", path, oldVal, newVal, formatNumber(delta))
			}
			if delta < 0 {
				return fmt.Sprintf("%s decreased from %v to %v (%s)", path, oldVal, newVal, formatNumber(delta))
			}
		}
	}
	return fmt.Sprintf("%s changed from '%v' to '%v'", path, oldVal, newVal)
}
