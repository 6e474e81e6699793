package padron

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseCSV reads a padron load file: UTF-8 (BOM tolerated), comma-delimited,
// header row required. Headers must be a subset of the declared schema and
// must include cuenta and nombre. Values are carried as strings; the table's
// column types coerce them on insert.
func ParseCSV(r io.Reader, schema Schema) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := SanitizeColumnName(h)
		if name == "" {
			return nil, fmt.Errorf("column %d: empty header", i+1)
		}
		if !schema.HasColumn(name) {
			return nil, fmt.Errorf("column %q is not declared in the padron schema", strings.TrimSpace(h))
		}
		cols[i] = name
	}
	if !contains(cols, "cuenta") {
		return nil, fmt.Errorf("CSV must contain column cuenta")
	}
	if !contains(cols, "nombre") {
		return nil, fmt.Errorf("CSV must contain column nombre")
	}

	var rows []map[string]string
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(map[string]string, len(cols))
		for i, v := range record {
			if i < len(cols) {
				row[cols[i]] = strings.TrimSpace(v)
			}
		}
		if row["cuenta"] == "" {
			return nil, fmt.Errorf("line %d: empty cuenta", line)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV has no data rows")
	}
	return rows, nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
