package textfmt

import (
	"testing"
	"time"
)

func TestAutoFormatNumber(t *testing.T) {
	if got := DefaultLocale.Format(1234567, ""); got != "1.234.567" {
		t.Fatalf("expected 1.234.567 got %q", got)
	}
	if got := DefaultLocale.Format(1234.5, ""); got != "1.234,50" {
		t.Fatalf("expected 1.234,50 got %q", got)
	}
}

func TestAutoFormatDate(t *testing.T) {
	d := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := DefaultLocale.Format(d, ""); got != "09/03/2024" {
		t.Fatalf("expected 09/03/2024 got %q", got)
	}
}

func TestCurrency(t *testing.T) {
	if got := DefaultLocale.Format(10000, "moneda"); got != "$10.000,00" {
		t.Fatalf("expected $10.000,00 got %q", got)
	}
	// locale-formatted string input round-trips
	if got := DefaultLocale.Format("1.234,56", "currency"); got != "$1.234,56" {
		t.Fatalf("expected $1.234,56 got %q", got)
	}
}

func TestIntegerAndDecimal(t *testing.T) {
	if got := DefaultLocale.Format(1234.6, "entero"); got != "1.235" {
		t.Fatalf("expected 1.235 got %q", got)
	}
	if got := DefaultLocale.Format(1234.5678, "decimal(10,3)"); got != "1.234,568" {
		t.Fatalf("expected 1.234,568 got %q", got)
	}
}

func TestCaseSpecs(t *testing.T) {
	if got := DefaultLocale.Format("juan perez", "mayusculas"); got != "JUAN PEREZ" {
		t.Fatalf("uppercase: got %q", got)
	}
	if got := DefaultLocale.Format("JUAN PEREZ", "lowercase"); got != "juan perez" {
		t.Fatalf("lowercase: got %q", got)
	}
	if got := DefaultLocale.Format("juan PEREZ lopez", "title"); got != "Juan Perez Lopez" {
		t.Fatalf("title: got %q", got)
	}
}

func TestDateSpecParsesCommonLayouts(t *testing.T) {
	for _, in := range []string{"2024-03-09", "09/03/2024", "09-03-2024"} {
		if got := DefaultLocale.Format(in, "fecha"); got != "09/03/2024" {
			t.Fatalf("fecha(%q): got %q", in, got)
		}
	}
}

func TestMask(t *testing.T) {
	if got := DefaultLocale.Format("123456789", "###-##-####"); got != "123-45-6789" {
		t.Fatalf("mask: got %q", got)
	}
	// digits shorter than mask: output stops where digits run out
	if got := DefaultLocale.Format("12", "##-##"); got != "12-" {
		t.Fatalf("short mask: got %q", got)
	}
}

func TestUnparseableReturnsInput(t *testing.T) {
	if got := DefaultLocale.Format("n/a", "moneda"); got != "n/a" {
		t.Fatalf("expected passthrough got %q", got)
	}
	if got := DefaultLocale.Format("sin fecha", "fecha"); got != "sin fecha" {
		t.Fatalf("expected passthrough got %q", got)
	}
}

func TestFormatRow(t *testing.T) {
	row := map[string]any{
		"cuenta":       "C-001",
		"monto_total":  1500.5,
		"fecha_corte":  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		"observacion":  nil,
		"numero_casa":  42,
	}
	out := DefaultLocale.FormatRow(row)
	if out["monto_total"] != "$1.500,50" {
		t.Fatalf("money column: got %q", out["monto_total"])
	}
	if out["fecha_corte"] != "02/01/2024" {
		t.Fatalf("date column: got %q", out["fecha_corte"])
	}
	if out["observacion"] != "" {
		t.Fatalf("nil column: got %q", out["observacion"])
	}
	if out["numero_casa"] != "42" {
		t.Fatalf("plain numeric column: got %q", out["numero_casa"])
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefgh", 5, "..."); got != "ab..." {
		t.Fatalf("truncate: got %q", got)
	}
	if got := Truncate("abc", 5, "..."); got != "abc" {
		t.Fatalf("no-op truncate: got %q", got)
	}
}
