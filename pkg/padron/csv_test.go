package padron

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	in := "\ufeffcuenta,nombre,monto_adeudo\nC-001,Juan Perez,1500.50\nC-002,Maria Lopez,0\n"
	rows, err := ParseCSV(strings.NewReader(in), testSchema())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
	if rows[0]["cuenta"] != "C-001" || rows[0]["monto_adeudo"] != "1500.50" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
}

func TestParseCSVRejectsUndeclaredColumn(t *testing.T) {
	in := "cuenta,nombre,telefono\nC-001,Juan,555\n"
	if _, err := ParseCSV(strings.NewReader(in), testSchema()); err == nil {
		t.Fatal("undeclared column accepted")
	}
}

func TestParseCSVRequiresMandatoryColumns(t *testing.T) {
	in := "nombre,direccion\nJuan,Calle 1\n"
	if _, err := ParseCSV(strings.NewReader(in), testSchema()); err == nil {
		t.Fatal("missing cuenta accepted")
	}
}

func TestParseCSVEmpty(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader(""), testSchema()); err == nil {
		t.Fatal("empty file accepted")
	}
	if _, err := ParseCSV(strings.NewReader("cuenta,nombre\n"), testSchema()); err == nil {
		t.Fatal("header-only file accepted")
	}
}
