// Package pdfrender draws formatted values and a barcode raster onto an
// absolutely-positioned page. Coordinates in the field map are centimeters
// from the top-left page corner; gofpdf keeps that origin, so the conversion
// to PDF's bottom-left coordinate space stays inside the library.
package pdfrender

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"emisor/pkg/textfmt"
)

// Field places one value on the page. Sizes are cm, font size is points.
type Field struct {
	PadronField string
	X           float64
	Y           float64
	Width       float64
	Height      float64
	Font        string
	Size        float64
	IsBarcode   bool
	Format      string
}

// PageSize in centimeters.
type PageSize struct {
	Width  float64
	Height float64
}

// DefaultPageSize is México Oficio, the page the original notices use.
var DefaultPageSize = PageSize{Width: 21.59, Height: 34.01}

const (
	ptToCm = 2.54 / 72.0
	// leading multiplier for wrapped lines
	lineSpacing = 1.2
	// shrink floor and truncation budget for values that never fit
	minFontPt   = 8.0
	truncBudget = 30
)

// Renderer is safe for concurrent use: every Render call builds its own
// gofpdf document.
type Renderer struct {
	Locale textfmt.Locale
}

func New() *Renderer {
	return &Renderer{Locale: textfmt.DefaultLocale}
}

// Render produces one PDF page from the field map. A key missing from data is
// drawn as a visible [field] token so mapping mistakes surface on paper
// instead of as blanks.
func (r *Renderer) Render(fields []Field, page PageSize, data map[string]string, barcodeImg image.Image) ([]byte, error) {
	if page.Width <= 0 || page.Height <= 0 {
		page = DefaultPageSize
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "cm",
		Size:           gofpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	for _, f := range fields {
		if f.IsBarcode {
			if barcodeImg != nil {
				if err := drawBarcode(pdf, f, barcodeImg); err != nil {
					return nil, fmt.Errorf("field %s: %w", f.PadronField, err)
				}
			}
			continue
		}
		value, ok := data[f.PadronField]
		if !ok {
			value = "[" + f.PadronField + "]"
		} else if f.Format != "" {
			value = r.Locale.Format(value, f.Format)
		}
		drawText(pdf, f, value)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderFile renders and writes the document, creating parent directories.
func (r *Renderer) RenderFile(fields []Field, page PageSize, data map[string]string, barcodeImg image.Image, path string) error {
	out, err := r.Render(fields, page, data, barcodeImg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

// drawText runs the fit ladder and draws the resulting lines left-aligned
// inside the field box.
func drawText(pdf *gofpdf.Fpdf, f Field, value string) {
	family := coreFont(f.Font)
	size := f.Size
	if size <= 0 {
		size = 11
	}
	lines, fitSize, truncated := fitText(pdf, family, size, value, f.Width, f.Height)

	if truncated {
		// single centered line at the declared size, ellipsized
		pdf.SetFont(family, "", size)
		pdf.Text(f.X, f.Y+(f.Height+size*ptToCm)/2, lines[0])
		return
	}
	pdf.SetFont(family, "", fitSize)
	if len(lines) == 1 {
		pdf.Text(f.X, f.Y+(f.Height+fitSize*ptToCm)/2, lines[0])
		return
	}
	lineH := fitSize * ptToCm * lineSpacing
	for i, line := range lines {
		pdf.Text(f.X, f.Y+float64(i+1)*lineH, line)
	}
}

// fitText reproduces the fit ladder: single line at the declared size, then
// word-wrap, then 1pt shrink steps down to the 8pt floor, then truncation.
// truncated=true means the caller gets exactly one ellipsized line.
func fitText(pdf *gofpdf.Fpdf, family string, size float64, value string, boxW, boxH float64) (lines []string, fitSize float64, truncated bool) {
	pdf.SetFont(family, "", size)
	if pdf.GetStringWidth(value) <= boxW {
		return []string{value}, size, false
	}

	for s := size; s >= minFontPt; s-- {
		pdf.SetFont(family, "", s)
		wrapped := wrapText(pdf, value, boxW)
		if float64(len(wrapped))*s*ptToCm*lineSpacing <= boxH {
			return wrapped, s, false
		}
	}
	return []string{textfmt.Truncate(value, truncBudget+3, "...")}, size, true
}

// wrapText greedily packs words into lines no wider than maxW at the font
// currently set on pdf. A single word wider than the box gets its own line.
func wrapText(pdf *gofpdf.Fpdf, value string, maxW float64) []string {
	words := strings.Fields(value)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	var current []string
	for _, word := range words {
		test := strings.Join(append(current, word), " ")
		if pdf.GetStringWidth(test) <= maxW || len(current) == 0 {
			current = append(current, word)
		} else {
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
		}
	}
	return append(lines, strings.Join(current, " "))
}

// drawBarcode scales the raster to fit the box preserving aspect ratio and
// centers it on both axes.
func drawBarcode(pdf *gofpdf.Fpdf, f Field, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode barcode png: %w", err)
	}
	name := fmt.Sprintf("barcode_%s", f.PadronField)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)

	imgW := float64(img.Bounds().Dx())
	imgH := float64(img.Bounds().Dy())
	scale := f.Width / imgW
	if h := f.Height / imgH; h < scale {
		scale = h
	}
	w := imgW * scale
	h := imgH * scale
	pdf.ImageOptions(name, f.X+(f.Width-w)/2, f.Y+(f.Height-h)/2, w, h, false, opts, 0, "")
	return nil
}

// coreFont maps template font names onto the PDF core fonts.
func coreFont(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "times", "times new roman":
		return "Times"
	case "courier", "courier new":
		return "Courier"
	default:
		return "Helvetica"
	}
}
