package emission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxCSVBytes caps accepted input files at 50 MB.
const DefaultMaxCSVBytes = 50 << 20

// ErrCSVTooLarge is returned when the input exceeds the configured cap.
var ErrCSVTooLarge = errors.New("emission CSV exceeds size limit")

// Record is one validated input row.
type Record struct {
	Cuenta     string
	PrintOrder int
	Extra      map[string]string
	Line       int
}

// headerAliases maps accepted header spellings onto the canonical names.
var headerAliases = map[string]string{
	"cuenta":          "cuenta",
	"account":         "cuenta",
	"orden_impresion": "orden_impresion",
	"print_order":     "orden_impresion",
}

// LoadCSV reads and validates the emission input: UTF-8 (BOM tolerated),
// header row with cuenta and orden_impresion (aliases account/print_order),
// every other column carried through as free-form record data. Duplicate
// print orders, empty files and oversize input are structural errors that
// abort the run before anything is rendered.
func LoadCSV(r io.Reader, maxBytes int64) ([]Record, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCSVBytes
	}
	lr := &limitedReader{r: io.LimitReader(r, maxBytes+1), max: maxBytes}
	cr := csv.NewReader(lr)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("the CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cuentaIdx, ordenIdx := -1, -1
	extraCols := map[int]string{}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		switch headerAliases[name] {
		case "cuenta":
			cuentaIdx = i
		case "orden_impresion":
			ordenIdx = i
		default:
			extraCols[i] = name
		}
	}
	if cuentaIdx < 0 {
		return nil, fmt.Errorf("required column not found: cuenta")
	}
	if ordenIdx < 0 {
		return nil, fmt.Errorf("required column not found: orden_impresion")
	}

	var records []Record
	seenOrder := map[int]int{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if lr.exceeded {
				return nil, ErrCSVTooLarge
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cuenta := strings.TrimSpace(row[cuentaIdx])
		if cuenta == "" {
			return nil, fmt.Errorf("line %d: empty cuenta", line)
		}
		orden, err := strconv.Atoi(strings.TrimSpace(row[ordenIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid orden_impresion %q", line, row[ordenIdx])
		}
		if prev, dup := seenOrder[orden]; dup {
			return nil, fmt.Errorf("line %d: duplicate orden_impresion %d (first seen line %d)", line, orden, prev)
		}
		seenOrder[orden] = line

		extra := map[string]string{}
		for i, name := range extraCols {
			if i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					extra[name] = v
				}
			}
		}
		records = append(records, Record{Cuenta: cuenta, PrintOrder: orden, Extra: extra, Line: line})
	}
	if lr.exceeded {
		return nil, ErrCSVTooLarge
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("the CSV contains no valid records")
	}
	return records, nil
}

// uniqueCuentas returns the distinct accounts in first-seen order.
func uniqueCuentas(records []Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range records {
		if !seen[r.Cuenta] {
			seen[r.Cuenta] = true
			out = append(out, r.Cuenta)
		}
	}
	return out
}

// limitedReader flags reads past max so the size cap error is distinguishable
// from a parse error.
type limitedReader struct {
	r        io.Reader
	max      int64
	read     int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		l.exceeded = true
		return n, ErrCSVTooLarge
	}
	return n, err
}
