// Package textfmt formats padron values into the strings drawn on documents.
// All functions are pure; locale separators are passed in explicitly instead
// of living in process-wide state. Formatting never fails: unparseable input
// is returned unchanged so a bad value cannot abort a batch.
package textfmt

import (
	"regexp"
	"strings"
	"time"
)

// Locale carries the separators and symbols used for numeric and date output.
type Locale struct {
	ThousandsSep   string
	DecimalSep     string
	CurrencySymbol string
	DateFormat     string
}

// DefaultLocale matches the emission documents: dot-grouped thousands, comma
// decimals, $ currency, DD/MM/YYYY dates.
var DefaultLocale = Locale{
	ThousandsSep:   ".",
	DecimalSep:     ",",
	CurrencySymbol: "$",
	DateFormat:     "02/01/2006",
}

var decimalSpecRE = regexp.MustCompile(`decimal\((\d+)\s*,\s*(\d+)\)`)

// Format renders value according to spec. An empty spec infers formatting from
// the value's runtime shape. Spec keywords accept both Spanish and English.
func (l Locale) Format(value any, spec string) string {
	if value == nil {
		return ""
	}
	if strings.TrimSpace(spec) == "" {
		return l.autoFormat(value)
	}
	s := strings.ToLower(strings.TrimSpace(spec))
	switch {
	case strings.Contains(s, "moneda") || strings.Contains(s, "currency") || strings.Contains(s, "$"):
		return l.formatCurrency(value)
	case strings.Contains(s, "fecha") || strings.Contains(s, "date"):
		return l.formatDate(value)
	case strings.Contains(s, "entero") || strings.Contains(s, "integer"):
		return l.formatInteger(value)
	case strings.Contains(s, "decimal"):
		scale := 2
		if m := decimalSpecRE.FindStringSubmatch(s); m != nil {
			scale = atoiSafe(m[2])
		}
		return l.formatDecimal(value, scale)
	case strings.Contains(s, "mayús") || strings.Contains(s, "mayus") || strings.Contains(s, "uppercase"):
		return strings.ToUpper(stringify(value))
	case strings.Contains(s, "minús") || strings.Contains(s, "minus") || strings.Contains(s, "lowercase"):
		return strings.ToLower(stringify(value))
	case strings.Contains(s, "title") || strings.Contains(s, "capitalize"):
		return titleCase(stringify(value))
	case strings.Contains(spec, "#"):
		return applyMask(stringify(value), spec)
	default:
		// literal spec; {value} interpolates the raw value
		return strings.ReplaceAll(spec, "{value}", stringify(value))
	}
}

// autoFormat picks an output form from the runtime shape of value: numbers get
// grouped thousands (decimals only when non-integral), times become dates,
// everything else is its literal string.
func (l Locale) autoFormat(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(l.DateFormat)
	case string:
		return v
	default:
		if n, ok := toFloat(value); ok {
			if n == float64(int64(n)) {
				return l.groupFloat(n, 0)
			}
			return l.groupFloat(n, 2)
		}
		return stringify(value)
	}
}

func (l Locale) formatCurrency(value any) string {
	n, ok := l.parseNumeric(value)
	if !ok {
		return stringify(value)
	}
	return l.CurrencySymbol + l.groupFloat(n, 2)
}

func (l Locale) formatInteger(value any) string {
	n, ok := l.parseNumeric(value)
	if !ok {
		return stringify(value)
	}
	return l.groupFloat(roundHalfAway(n), 0)
}

func (l Locale) formatDecimal(value any, scale int) string {
	n, ok := l.parseNumeric(value)
	if !ok {
		return stringify(value)
	}
	return l.groupFloat(n, scale)
}

func (l Locale) formatDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(l.DateFormat)
	case string:
		for _, layout := range []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006/01/02", "02012006", time.RFC3339} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format(l.DateFormat)
			}
		}
		return v
	default:
		return stringify(value)
	}
}

// applyMask consumes digits of value left-to-right into the '#' placeholders
// of spec. Output ends when either the mask or the digits run out.
func applyMask(value, spec string) string {
	digits := onlyDigits(value)
	var b strings.Builder
	vi := 0
	for fi := 0; fi < len(spec) && vi < len(digits); fi++ {
		if spec[fi] == '#' {
			b.WriteByte(digits[vi])
			vi++
		} else {
			b.WriteByte(spec[fi])
		}
	}
	return b.String()
}

// Truncate shortens text to max runes, appending suffix when cut.
func Truncate(text string, max int, suffix string) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	keep := max - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + suffix
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
