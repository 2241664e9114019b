// Package fieldpath renders and inspects dotted field paths with [i] index
// segments, as used by diff explanations ("Revenues by month.January",
// "Milestones[2].Start").
package fieldpath

import (
	"fmt"
	"strings"
)

// Child appends a field name segment to a path.
func Child(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// Index appends an [i] segment to a path. Indices attach directly to the
// preceding segment, without a dot.
func Index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// Join builds a path from individual segments. Segments that are index
// markers ("[0]") attach without a separator.
func Join(segments []string) string {
	var builder strings.Builder
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if builder.Len() > 0 && !strings.HasPrefix(segment, "[") {
			builder.WriteByte('.')
		}
		builder.WriteString(segment)
	}
	return builder.String()
}

// Parent returns the path without its last segment.
func Parent(path string) string {
	if idx := strings.LastIndexAny(path, ".["); idx > 0 {
		return strings.TrimSuffix(path[:idx], ".")
	}
	return ""
}

// Depth counts the segments of a path.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return len(Segments(path))
}

// Segments splits a path into its field-name and index segments.
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	var segments []string
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.Index(part, "[")
			if open < 0 {
				if part != "" {
					segments = append(segments, part)
				}
				break
			}
			if open > 0 {
				segments = append(segments, part[:open])
			}
			end := strings.Index(part[open:], "]")
			if end < 0 {
				segments = append(segments, part[open:])
				break
			}
			segments = append(segments, part[open:open+end+1])
			part = part[open+end+1:]
		}
	}
	return segments
}
