package export

import "fmt"

// Service dispatches export requests to the format renderers and optionally
// archives results.
type Service struct {
	archive *Archive
}

// NewService creates an export service. archive may be nil when no object
// store is configured.
func NewService(archive *Archive) *Service {
	return &Service{archive: archive}
}

// Export renders the workbook in the requested format.
func (s *Service) Export(wb Workbook, format Format) (*Result, error) {
	var result *Result
	var err error

	switch format {
	case FormatXLSX:
		result, err = exportXLSX(wb)
	case FormatPDF:
		var html string
		html, err = renderHTML(wb)
		if err != nil {
			return nil, err
		}
		result, err = exportPDF(html, wb.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		s.archive.StoreAsync(result)
	}
	return result, nil
}
