// Package export renders spreadsheets to downloadable XLSX and PDF files.
package export

import (
	"errors"

	"gridbook/api/internal/store"
)

// Format represents the export output format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// SheetData bundles a sheet with its cells for rendering.
type SheetData struct {
	Sheet store.Sheet
	Cells []store.Cell
}

// Workbook is the full spreadsheet state handed to the renderers.
type Workbook struct {
	Name   string
	Sheets []SheetData
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates an unknown export format was requested.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// sanitizeFilename creates a safe filename from a spreadsheet name.
func sanitizeFilename(name string) string {
	result := ""
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "spreadsheet"
	}
	return result
}
