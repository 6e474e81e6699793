// Package barcode rasterizes symbol payloads for the PDF renderer. Output
// geometry is fixed (module width, bar height, quiet zone) so printed codes
// stay scan-reliable regardless of the source template's DPI.
package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"regexp"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/disintegration/imaging"
)

const (
	// pixels per narrow module and bar height of the final raster
	modulePx = 3
	heightPx = 120
	// quiet zone on each side, in modules
	quietModules = 10
)

// ErrEmptyPayload is returned when there is nothing to encode.
var ErrEmptyPayload = errors.New("empty barcode payload")

var code39RE = regexp.MustCompile(`^[A-Z0-9 \-\.\$\+\/\%]*$`)

// Validate checks payload against the symbology's charset and length limits.
func Validate(payload, symbology string) error {
	if strings.TrimSpace(payload) == "" {
		return ErrEmptyPayload
	}
	switch normalizeSymbology(symbology) {
	case "code128":
		if len(payload) > 255 {
			return fmt.Errorf("code128: payload exceeds 255 characters")
		}
		for _, r := range payload {
			if r > 127 {
				return fmt.Errorf("code128: non-ASCII character %q", r)
			}
		}
	case "code39":
		if !code39RE.MatchString(payload) {
			return fmt.Errorf("code39: only A-Z, 0-9, space and -.$+/%% allowed")
		}
		if len(payload) > 43 {
			return fmt.Errorf("code39: payload exceeds 43 characters")
		}
	case "ean13":
		if !isDigits(payload) || (len(payload) != 12 && len(payload) != 13) {
			return fmt.Errorf("ean13: payload must be 12 or 13 digits")
		}
	case "ean8":
		if !isDigits(payload) || (len(payload) != 7 && len(payload) != 8) {
			return fmt.Errorf("ean8: payload must be 7 or 8 digits")
		}
	}
	return nil
}

// Render encodes payload and scales it to the fixed module geometry. Unknown
// symbologies fall back to Code128; an invalid payload is an error.
func Render(payload, symbology string) (image.Image, error) {
	sym := normalizeSymbology(symbology)
	if err := Validate(payload, sym); err != nil {
		return nil, err
	}
	var (
		bc  barcode.Barcode
		err error
	)
	switch sym {
	case "code39":
		bc, err = code39.Encode(payload, true, false)
	case "ean13", "ean8":
		bc, err = ean.Encode(payload)
	default:
		bc, err = code128.Encode(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", sym, err)
	}

	width := bc.Bounds().Dx() * modulePx
	scaled, err := barcode.Scale(bc, width, heightPx)
	if err != nil {
		return nil, fmt.Errorf("scale %s: %w", sym, err)
	}

	// surround with the quiet zone on a white canvas
	quiet := quietModules * modulePx
	canvas := imaging.New(width+2*quiet, heightPx+2*quiet/3, color.White)
	return imaging.Paste(canvas, scaled, image.Pt(quiet, quiet/3)), nil
}

// normalizeSymbology maps the caller's symbology name onto a supported one.
// Anything unrecognized becomes Code128 (logged, never an error).
func normalizeSymbology(symbology string) string {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(symbology), "-", ""))
	switch s {
	case "", "code128":
		return "code128"
	case "code39", "ean13", "ean8":
		return s
	default:
		log.Printf("unsupported barcode symbology %q, falling back to code128", symbology)
		return "code128"
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
