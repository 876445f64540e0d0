package record

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Record is one job-application submission: an arbitrary JSON object with
// nested blocks for qualifications, employment history and so on. Records are
// read-only inputs to evaluation.
type Record map[string]any

// Parse decodes a JSON object into a Record.
func Parse(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing application record: %w", err)
	}
	return r, nil
}

// Load reads and parses an application record from a JSON file.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading application record %q: %w", path, err)
	}
	return Parse(data)
}

// Lookup resolves a dotted field path against the record and reports whether
// the path resolved at all. Supported path elements:
//
//   - plain keys for object access ("current_government_employment.post")
//   - numeric indices for array access ("ordinary_level_exams.0.subjects")
//   - "*" for array wildcard access ("ordinary_level_exams.*.subjects"),
//     projecting the remaining path across all elements
//
// A key that is present with an explicit null resolves to (nil, true); a
// missing key resolves to (nil, false). Callers decide how to treat null.
func (r Record) Lookup(path string) (any, bool) {
	if path == "" {
		return map[string]any(r), true
	}
	return lookup(map[string]any(r), strings.Split(path, "."))
}

func lookup(value any, parts []string) (any, bool) {
	if len(parts) == 0 {
		return value, true
	}

	part := parts[0]
	rest := parts[1:]

	switch v := value.(type) {
	case map[string]any:
		child, ok := v[part]
		if !ok {
			return nil, false
		}
		if len(rest) == 0 {
			return child, true
		}
		if child == nil {
			return nil, false
		}
		return lookup(child, rest)

	case []any:
		if part == "*" {
			if len(rest) == 0 {
				return v, true
			}
			return project(v, rest)
		}
		if idx, err := strconv.Atoi(part); err == nil {
			if idx < 0 || idx >= len(v) {
				return nil, false
			}
			if len(rest) == 0 {
				return v[idx], true
			}
			return lookup(v[idx], rest)
		}
		// Key access on an array projects the key across its elements.
		return project(v, parts)

	default:
		return nil, false
	}
}

// project resolves the remaining path against every element of the array and
// collects the values that resolved. The path is absent when no element had it.
func project(items []any, parts []string) (any, bool) {
	results := make([]any, 0, len(items))
	for _, item := range items {
		if value, ok := lookup(item, parts); ok {
			results = append(results, value)
		}
	}
	if len(results) == 0 {
		return nil, false
	}
	return results, true
}
