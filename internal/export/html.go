package export

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"gridbook/api/internal/store"
)

type htmlCell struct {
	Content string
	Style   template.CSS
}

type htmlSheet struct {
	Name      string
	ColWidths []int
	Rows      [][]htmlCell
}

type htmlWorkbook struct {
	Name   string
	Sheets []htmlSheet
}

// renderHTML lays each sheet out as a table, skipping hidden rows and
// columns the way the on-screen grid does.
func renderHTML(wb Workbook) (string, error) {
	out := htmlWorkbook{Name: wb.Name}
	for _, data := range wb.Sheets {
		out.Sheets = append(out.Sheets, buildHTMLSheet(data))
	}

	var buf bytes.Buffer
	if err := gridTemplate.Execute(&buf, out); err != nil {
		return "", fmt.Errorf("render grid html: %w", err)
	}
	return buf.String(), nil
}

func buildHTMLSheet(data SheetData) htmlSheet {
	sheet := data.Sheet
	byCoord := make(map[[2]int]store.Cell, len(data.Cells))
	for _, cell := range data.Cells {
		byCoord[[2]int{cell.Row, cell.Col}] = cell
	}

	visibleCols := make([]int, 0, sheet.NumCols)
	for col := 0; col < sheet.NumCols; col++ {
		if !sheet.HiddenCols[col] {
			visibleCols = append(visibleCols, col)
		}
	}
	sort.Ints(visibleCols)

	out := htmlSheet{Name: sheet.Name}
	for _, col := range visibleCols {
		width := sheet.ColWidths[col]
		if width == 0 {
			width = 100
		}
		out.ColWidths = append(out.ColWidths, width)
	}

	for row := 0; row < sheet.NumRows; row++ {
		if sheet.HiddenRows[row] {
			continue
		}
		htmlRow := make([]htmlCell, 0, len(visibleCols))
		for _, col := range visibleCols {
			cell, ok := byCoord[[2]int{row, col}]
			hc := htmlCell{}
			if ok {
				if cell.Content != nil {
					hc.Content = *cell.Content
				}
				hc.Style = template.CSS(inlineStyle(cell, sheet.RowHeights[row]))
			}
			htmlRow = append(htmlRow, hc)
		}
		out.Rows = append(out.Rows, htmlRow)
	}
	return out
}

func inlineStyle(cell store.Cell, rowHeight int) string {
	style := ""
	if cell.BgColor != "" {
		style += "background:" + cell.BgColor + ";"
	}
	if cell.Color != "" {
		style += "color:" + cell.Color + ";"
	}
	if cell.Style["bold"] == "true" {
		style += "font-weight:bold;"
	}
	if cell.Style["italic"] == "true" {
		style += "font-style:italic;"
	}
	if cell.Style["underlined"] == "true" {
		style += "text-decoration:underline;"
	}
	if size := cell.Style["fontSize"]; size != "" {
		style += "font-size:" + size + "px;"
	}
	if cell.HAlign != "" {
		style += "text-align:" + cell.HAlign + ";"
	}
	if cell.VAlign != "" {
		style += "vertical-align:" + cell.VAlign + ";"
	}
	if rowHeight > 0 {
		style += fmt.Sprintf("height:%dpx;", rowHeight)
	}
	return style
}

var gridTemplate = template.Must(template.New("grid").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Name}}</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #222; }
  h1 { font-size: 18px; margin: 0 0 8px; }
  h2 { font-size: 14px; margin: 16px 0 6px; color: #555; }
  table { border-collapse: collapse; table-layout: fixed; }
  td { border: 1px solid #ccc; padding: 2px 4px; font-size: 11px; overflow: hidden; white-space: nowrap; }
  .sheet { page-break-after: always; }
  .sheet:last-child { page-break-after: auto; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
{{range .Sheets}}
<div class="sheet">
<h2>{{.Name}}</h2>
<table>
<colgroup>
{{range .ColWidths}}<col style="width:{{.}}px">{{end}}
</colgroup>
{{range .Rows}}<tr>{{range .}}<td style="{{.Style}}">{{.Content}}</td>{{end}}</tr>
{{end}}
</table>
</div>
{{end}}
</body>
</html>`))
