package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned when no adapter serves the requested format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names an output byte format.
type Format string

const (
	// FormatPDF rasterizes the page and embeds the bitmap as a single PDF
	// page. It matches the designer preview pixel for pixel.
	FormatPDF Format = "pdf"
	// FormatPDFVector draws native PDF text and shapes. Smaller files and
	// selectable text, but glyph placement may differ slightly from the
	// designer preview.
	FormatPDFVector Format = "pdf-vector"
	FormatPNG       Format = "png"
	FormatJPEG      Format = "jpeg"
	FormatHTML      Format = "html"
)

// Formats lists every built-in format.
var Formats = []Format{FormatPDF, FormatPDFVector, FormatPNG, FormatJPEG, FormatHTML}

// ParseFormat maps user input to a Format. An empty string selects FormatPDF.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPDF, nil
	case "jpg":
		return FormatJPEG, nil
	case "vector", "pdf_vector":
		return FormatPDFVector, nil
	case FormatPDF, FormatPDFVector, FormatPNG, FormatJPEG, FormatHTML:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF, FormatPDFVector:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPDF, FormatPDFVector:
		return ".pdf"
	case FormatPNG:
		return ".png"
	case FormatJPEG:
		return ".jpg"
	case FormatHTML:
		return ".html"
	}
	return ".bin"
}

// Adapter serializes a composed page. Implementations must be deterministic:
// the same page always yields the same bytes.
type Adapter interface {
	Encode(page *Page, fonts *FontSet) ([]byte, error)
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(page *Page, fonts *FontSet) ([]byte, error)

func (f AdapterFunc) Encode(page *Page, fonts *FontSet) ([]byte, error) {
	return f(page, fonts)
}

func builtinAdapters() map[Format]Adapter {
	return map[Format]Adapter{
		FormatPDF:       AdapterFunc(encodeRasterPDF),
		FormatPDFVector: AdapterFunc(encodeVectorPDF),
		FormatPNG:       AdapterFunc(encodePNG),
		FormatJPEG:      AdapterFunc(encodeJPEG),
		FormatHTML:      AdapterFunc(encodeHTML),
	}
}
