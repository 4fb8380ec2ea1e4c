package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gridbook/api/internal/store"
)

// Pixel geometry converts to Excel units: column widths are in character
// units (~7px each), row heights in points (0.75pt per px).
const (
	pxPerCharUnit = 7.0
	ptPerPx       = 0.75
)

// exportXLSX renders the workbook with excelize.
func exportXLSX(wb Workbook) (*Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, data := range wb.Sheets {
		name := data.Sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("add sheet: %w", err)
			}
		}
		if err := renderSheet(f, name, data); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(wb.Name) + ".xlsx",
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

func renderSheet(f *excelize.File, name string, data SheetData) error {
	for col, width := range data.Sheet.ColWidths {
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			continue
		}
		if err := f.SetColWidth(name, colName, colName, float64(width)/pxPerCharUnit); err != nil {
			return fmt.Errorf("set col width: %w", err)
		}
	}
	for row, height := range data.Sheet.RowHeights {
		if err := f.SetRowHeight(name, row+1, float64(height)*ptPerPx); err != nil {
			return fmt.Errorf("set row height: %w", err)
		}
	}
	for col, hidden := range data.Sheet.HiddenCols {
		if !hidden {
			continue
		}
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			continue
		}
		if err := f.SetColVisible(name, colName, false); err != nil {
			return fmt.Errorf("hide col: %w", err)
		}
	}
	for row, hidden := range data.Sheet.HiddenRows {
		if !hidden {
			continue
		}
		if err := f.SetRowVisible(name, row+1, false); err != nil {
			return fmt.Errorf("hide row: %w", err)
		}
	}

	for _, cell := range data.Cells {
		if cell.Content == nil && len(cell.Style) == 0 && cell.BgColor == "" && cell.Color == "" {
			continue
		}
		ref, err := excelize.CoordinatesToCellName(cell.Col+1, cell.Row+1)
		if err != nil {
			continue
		}
		if cell.Content != nil {
			if err := f.SetCellValue(name, ref, *cell.Content); err != nil {
				return fmt.Errorf("set cell %s: %w", ref, err)
			}
		}
		styleID, err := cellStyleID(f, cell)
		if err != nil {
			return err
		}
		if styleID != 0 {
			if err := f.SetCellStyle(name, ref, ref, styleID); err != nil {
				return fmt.Errorf("style cell %s: %w", ref, err)
			}
		}
	}
	return nil
}

func cellStyleID(f *excelize.File, cell store.Cell) (int, error) {
	style := excelize.Style{}
	styled := false

	font := excelize.Font{}
	if cell.Style["bold"] == "true" {
		font.Bold = true
		styled = true
	}
	if cell.Style["italic"] == "true" {
		font.Italic = true
		styled = true
	}
	if cell.Style["underlined"] == "true" {
		font.Underline = "single"
		styled = true
	}
	if raw := cell.Style["fontSize"]; raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			font.Size = float64(size)
			styled = true
		}
	}
	if cell.Color != "" {
		font.Color = strings.TrimPrefix(cell.Color, "#")
		styled = true
	}
	style.Font = &font

	if cell.BgColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{strings.TrimPrefix(cell.BgColor, "#")},
		}
		styled = true
	}

	if cell.HAlign != "" || cell.VAlign != "" {
		style.Alignment = &excelize.Alignment{
			Horizontal: strings.ToLower(cell.HAlign),
			Vertical:   strings.ToLower(cell.VAlign),
		}
		styled = true
	}

	if !styled {
		return 0, nil
	}
	id, err := f.NewStyle(&style)
	if err != nil {
		return 0, fmt.Errorf("new style: %w", err)
	}
	return id, nil
}
