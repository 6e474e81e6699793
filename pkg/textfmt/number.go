package textfmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// toFloat converts native numeric types without going through strings.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// parseNumeric accepts native numbers and locale-formatted strings
// (e.g. "1.234,56" with the default locale).
func (l Locale) parseNumeric(value any) (float64, bool) {
	if n, ok := toFloat(value); ok {
		return n, true
	}
	s, ok := value.(string)
	if !ok {
		return 0, false
	}
	clean := strings.ReplaceAll(s, l.ThousandsSep, "")
	clean = strings.ReplaceAll(clean, l.DecimalSep, ".")
	var b strings.Builder
	for _, r := range clean {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// groupFloat renders n with the locale separators and a fixed number of
// decimals. The grouping pass mirrors the digit walker the amount scanner
// uses: dots every three digits from the right.
func (l Locale) groupFloat(n float64, decimals int) string {
	s := strconv.FormatFloat(n, 'f', decimals, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	grouped := groupDigits(intPart, l.ThousandsSep)
	out := grouped
	if fracPart != "" {
		out += l.DecimalSep + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// groupDigits inserts sep every 3 digits.
func groupDigits(ds, sep string) string {
	n := len(ds)
	if n <= 3 {
		return ds
	}
	var parts []string
	for n > 3 {
		parts = append([]string{ds[n-3:]}, parts...)
		ds = ds[:n-3]
		n = len(ds)
	}
	parts = append([]string{ds}, parts...)
	return strings.Join(parts, sep)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func roundHalfAway(n float64) float64 {
	return math.Round(n)
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
