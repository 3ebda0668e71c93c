// Package profile inspects a tabular dataset and produces a structured summary
// of its shape, column types, missing values and basic statistics. The summary
// feeds the code generation agent so it can write analysis code without
// guessing at the data layout.
package profile

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/datalyze-ai/datalyze/core"
)

// sampleRowLimit caps the number of example rows included in a Summary.
const sampleRowLimit = 5

// Column describes a single column of the dataset.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // "numeric", "string", "boolean" or "mixed"
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`

	// Basic statistics, only set for numeric columns.
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Mean *float64 `json:"mean,omitempty"`
}

// Summary is the structured profile of a dataset.
type Summary struct {
	Path    string     `json:"path"`
	Format  string     `json:"format"`
	Rows    int        `json:"rows"`
	Columns []Column   `json:"columns"`
	Sample  [][]string `json:"sample,omitempty"`
}

// supportedFormats maps file extensions to the readers this package implements.
var supportedFormats = []string{".csv", ".json"}

// Profile reads the dataset at path and returns its Summary. Only CSV and JSON
// (array of flat objects) files can be profiled directly; other supported
// dataset formats are handled by generated analysis code instead.
func Profile(path string) (*Summary, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &core.NotFoundError{Path: path}
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return profileCSV(path)
	case ".json":
		return profileJSON(path)
	default:
		return nil, &core.UnsupportedFormatError{Extension: ext, Supported: supportedFormats}
	}
}

// Describe renders the summary as readable text for inclusion in a model
// conversation.
func (s *Summary) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s (%s)\n", s.Path, s.Format)
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n\n", s.Rows, len(s.Columns))
	b.WriteString("Columns:\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "  - %s (%s): %d missing, %d unique", c.Name, c.Type, c.Missing, c.Unique)
		if c.Type == "numeric" && c.Min != nil && c.Max != nil && c.Mean != nil {
			fmt.Fprintf(&b, ", min=%g max=%g mean=%.4g", *c.Min, *c.Max, *c.Mean)
		}
		b.WriteString("\n")
	}
	if len(s.Sample) > 0 {
		b.WriteString("\nSample rows:\n")
		for _, row := range s.Sample {
			fmt.Fprintf(&b, "  %s\n", strings.Join(row, ", "))
		}
	}
	return b.String()
}

func profileCSV(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, &core.InvalidInputError{Field: "path", Message: fmt.Sprintf("malformed CSV in %s: %v", path, err)}
	}
	if len(records) == 0 {
		return nil, &core.InvalidInputError{Field: "path", Message: fmt.Sprintf("%s is empty", path)}
	}

	header := records[0]
	rows := records[1:]

	summary := &Summary{
		Path:   path,
		Format: "csv",
		Rows:   len(rows),
	}

	for i, name := range header {
		col := Column{Name: name}
		var values []string
		for _, row := range rows {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				col.Missing++
				continue
			}
			values = append(values, row[i])
		}
		col.Type = inferType(values)
		col.Unique = countUnique(values)
		if col.Type == "numeric" {
			col.Min, col.Max, col.Mean = numericStats(values)
		}
		summary.Columns = append(summary.Columns, col)
	}

	for i, row := range rows {
		if i >= sampleRowLimit {
			break
		}
		summary.Sample = append(summary.Sample, row)
	}

	return summary, nil
}

func profileJSON(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &core.InvalidInputError{Field: "path", Message: fmt.Sprintf("%s is not a JSON array of objects: %v", path, err)}
	}

	// Stable column order: union of keys, sorted.
	keySet := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	summary := &Summary{
		Path:   path,
		Format: "json",
		Rows:   len(rows),
	}

	for _, key := range keys {
		col := Column{Name: key}
		var values []string
		for _, row := range rows {
			v, ok := row[key]
			if !ok || v == nil {
				col.Missing++
				continue
			}
			values = append(values, jsonScalar(v))
		}
		col.Type = inferType(values)
		col.Unique = countUnique(values)
		if col.Type == "numeric" {
			col.Min, col.Max, col.Mean = numericStats(values)
		}
		summary.Columns = append(summary.Columns, col)
	}

	for i, row := range rows {
		if i >= sampleRowLimit {
			break
		}
		var sample []string
		for _, key := range keys {
			if v, ok := row[key]; ok && v != nil {
				sample = append(sample, jsonScalar(v))
			} else {
				sample = append(sample, "")
			}
		}
		summary.Sample = append(summary.Sample, sample)
	}

	return summary, nil
}

func jsonScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, _ := json.Marshal(t)
		return string(raw)
	}
}

func inferType(values []string) string {
	if len(values) == 0 {
		return "string"
	}
	numeric, boolean := true, true
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			numeric = false
		}
		if v != "true" && v != "false" {
			boolean = false
		}
		if !numeric && !boolean {
			return "string"
		}
	}
	if numeric {
		return "numeric"
	}
	return "boolean"
}

func countUnique(values []string) int {
	seen := map[string]struct{}{}
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func numericStats(values []string) (min, max, mean *float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	var n int
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		if f < lo {
			lo = f
		}
		if f > hi {
			hi = f
		}
		sum += f
		n++
	}
	if n == 0 {
		return nil, nil, nil
	}
	avg := sum / float64(n)
	return &lo, &hi, &avg
}
