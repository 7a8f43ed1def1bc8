package sheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// RowIssue describes a data row that was skipped.
type RowIssue struct {
	Row    int    // 1-based, header is row 1
	Reason string
}

func (i RowIssue) String() string {
	return fmt.Sprintf("row %d: %s", i.Row, i.Reason)
}

// columns maps canonical field names to their index in a header row.
type columns map[string]int

// mapHeader resolves header cells through aliases. Headers are matched
// case-insensitively with spaces and dashes treated as underscores.
func mapHeader(header []string, aliases map[string][]string, required ...string) (columns, error) {
	lookup := make(map[string]string)
	for field, names := range aliases {
		lookup[field] = field
		for _, n := range names {
			lookup[n] = field
		}
	}

	cols := make(columns)
	for i, h := range header {
		key := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(h)))
		if field, ok := lookup[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}

	var missing []string
	for _, r := range required {
		if _, ok := cols[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("sheet: missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c columns) get(row []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// float parses an optional numeric cell. Thousands separators and a
// leading currency sign are tolerated.
func (c columns) float(row []string, field string) (float64, bool, error) {
	s := c.get(row, field)
	s = strings.TrimPrefix(strings.ReplaceAll(s, ",", ""), "$")
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, eris.Errorf("%s: %q is not a number", field, c.get(row, field))
	}
	return v, true, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
