package emission

import (
	"fmt"
	"strings"
	"testing"
)

func TestLoadCSV(t *testing.T) {
	in := "\ufeffcuenta,orden_impresion,referencia\nC-001,1,ABC\nC-002,2,\n"
	records, err := LoadCSV(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records got %d", len(records))
	}
	if records[0].Cuenta != "C-001" || records[0].PrintOrder != 1 {
		t.Fatalf("unexpected record %+v", records[0])
	}
	if records[0].Extra["referencia"] != "ABC" {
		t.Fatalf("extra field lost: %+v", records[0].Extra)
	}
	if _, ok := records[1].Extra["referencia"]; ok {
		t.Fatalf("empty extra value should be dropped: %+v", records[1].Extra)
	}
}

func TestLoadCSVEnglishAliases(t *testing.T) {
	in := "account,print_order\nC-001,1\n"
	records, err := LoadCSV(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("aliases rejected: %v", err)
	}
	if records[0].Cuenta != "C-001" {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestLoadCSVDuplicateOrder(t *testing.T) {
	in := "cuenta,orden_impresion\nC-001,1\nC-002,1\n"
	if _, err := LoadCSV(strings.NewReader(in), 0); err == nil {
		t.Fatal("duplicate orden_impresion accepted")
	}
}

func TestLoadCSVStructuralErrors(t *testing.T) {
	cases := []string{
		"",                                  // empty file
		"cuenta,orden_impresion\n",          // header only
		"cuenta\nC-001\n",                   // missing orden_impresion
		"orden_impresion\n1\n",              // missing cuenta
		"cuenta,orden_impresion\nC-001,x\n", // non-numeric order
		"cuenta,orden_impresion\n,1\n",      // empty cuenta
	}
	for _, in := range cases {
		if _, err := LoadCSV(strings.NewReader(in), 0); err == nil {
			t.Fatalf("input %q accepted", in)
		}
	}
}

func TestLoadCSVSizeCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("cuenta,orden_impresion\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "C-%04d,%d\n", i, i+1)
	}
	_, err := LoadCSV(strings.NewReader(b.String()), 64)
	if err != ErrCSVTooLarge {
		t.Fatalf("expected ErrCSVTooLarge got %v", err)
	}
}
