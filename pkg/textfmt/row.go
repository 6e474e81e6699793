package textfmt

import (
	"strings"
	"time"
)

// moneyHints are column-name fragments that make a bare numeric value render
// as currency during the automatic row pass.
var moneyHints = []string{"monto", "importe", "valor", "total", "saldo", "adeudo"}

// FormatRow applies the automatic format pass the engine runs over every
// matched padron row before rendering: nils become empty strings, times become
// dates, money-named numeric columns become currency, everything else keeps
// its literal rendering.
func (l Locale) FormatRow(row map[string]any) map[string]string {
	out := make(map[string]string, len(row))
	for key, value := range row {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case time.Time:
			out[key] = v.Format(l.DateFormat)
		default:
			if _, isNum := toFloat(value); isNum && isMoneyKey(key) {
				out[key] = l.formatCurrency(value)
			} else {
				out[key] = stringify(value)
			}
		}
	}
	return out
}

func isMoneyKey(key string) bool {
	k := strings.ToLower(key)
	for _, hint := range moneyHints {
		if strings.Contains(k, hint) {
			return true
		}
	}
	return false
}
