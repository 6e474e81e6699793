package barcode

import "testing"

func TestRenderCode128(t *testing.T) {
	img, err := Render("*C-001*20240309*N1*", "code128")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		t.Fatalf("empty image %v", b)
	}
	// quiet zone makes the raster wider than the bars alone
	if b.Dx() <= 2*quietModules*modulePx {
		t.Fatalf("missing quiet zone, width=%d", b.Dx())
	}
}

func TestUnknownSymbologyFallsBack(t *testing.T) {
	img, err := Render("12345", "pdf417")
	if err != nil {
		t.Fatalf("expected code128 fallback, got error: %v", err)
	}
	if img == nil {
		t.Fatal("nil image")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		payload, sym string
		wantErr      bool
	}{
		{"HELLO-123", "code39", false},
		{"hello", "code39", true},
		{"123456789012", "ean13", false},
		{"12345", "ean13", true},
		{"1234567", "ean8", false},
		{"ABC", "ean8", true},
		{"", "code128", true},
	}
	for _, c := range cases {
		err := Validate(c.payload, c.sym)
		if (err != nil) != c.wantErr {
			t.Fatalf("Validate(%q,%q) err=%v wantErr=%v", c.payload, c.sym, err, c.wantErr)
		}
	}
}

func TestCode128LengthLimit(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'A'
	}
	if err := Validate(string(long), "code128"); err == nil {
		t.Fatal("expected length error")
	}
}
