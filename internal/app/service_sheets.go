package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gridbook/api/internal/formula"
	"gridbook/api/internal/grid"
	"gridbook/api/internal/store"
)

func mapGridError(err error) error {
	switch {
	case errors.Is(err, grid.ErrRangeInvalid):
		return errValidation(err.Error())
	case errors.Is(err, grid.ErrCapacityExceeded):
		return errCapacity(err.Error())
	case errors.Is(err, grid.ErrExtentExhausted):
		return errConflict(err.Error())
	case errors.Is(err, grid.ErrLastVisible):
		return errConflict(err.Error())
	case errors.Is(err, grid.ErrSizeTooSmall):
		return errValidation(err.Error())
	case errors.Is(err, grid.ErrFontSizeRange):
		return errValidation(err.Error())
	default:
		return err
	}
}

func (s *Service) AddSheet(ctx context.Context, session Session, spreadsheetID, name string) (map[string]any, error) {
	spreadsheet, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermEdit)
	if err != nil {
		return nil, err
	}
	count, err := s.store.SheetCount(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Sheet%d", count+1)
	}

	sheet, cells := buildSheet(spreadsheetID, name, count, grid.DefaultRows, grid.DefaultCols, spreadsheet.Kind == store.KindCS)
	if err := s.store.InsertSheetWithCells(ctx, sheet, cells); err != nil {
		return nil, err
	}
	return sheetPayload(sheet, cells), nil
}

func (s *Service) GetSheetPayload(ctx context.Context, session Session, sheetID string) (map[string]any, error) {
	sheet, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermView)
	if err != nil {
		return nil, err
	}
	cells, err := s.store.ListCells(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return sheetPayload(sheet, cells), nil
}

// UpdateSheetMeta renames a sheet or changes its tab color. Empty fields
// are left untouched.
func (s *Service) UpdateSheetMeta(ctx context.Context, session Session, sheetID, name, color string) error {
	if strings.TrimSpace(name) == "" && strings.TrimSpace(color) == "" {
		return errValidation("nothing to update")
	}
	if _, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit); err != nil {
		return err
	}
	return s.store.UpdateSheetMeta(ctx, sheetID, strings.TrimSpace(name), strings.TrimSpace(color))
}

// DeleteSheet removes a sheet and closes the position gap. The last sheet
// of a spreadsheet cannot be deleted.
func (s *Service) DeleteSheet(ctx context.Context, session Session, sheetID string) error {
	sheet, spreadsheet, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	count, err := s.store.SheetCount(ctx, spreadsheet.ID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return errConflict("cannot delete the only sheet")
	}
	return s.store.DeleteSheetAndRenumber(ctx, sheetID, spreadsheet.ID, sheet.Position)
}

// MoveSheet repositions a sheet within its spreadsheet's tab order.
func (s *Service) MoveSheet(ctx context.Context, session Session, sheetID string, newIndex int) error {
	sheet, spreadsheet, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	count, err := s.store.SheetCount(ctx, spreadsheet.ID)
	if err != nil {
		return err
	}
	if newIndex < 0 || newIndex >= count {
		return errValidation("newIndex out of range")
	}
	if newIndex == sheet.Position {
		return nil
	}
	return s.store.MoveSheet(ctx, spreadsheet.ID, sheetID, sheet.Position, newIndex)
}

// InsertRows inserts a band of rows and returns the refreshed sheet.
func (s *Service) InsertRows(ctx context.Context, session Session, sheetID string, start, count int) (map[string]any, error) {
	return s.mutateBand(ctx, session, sheetID, grid.AxisRow, start, count, true)
}

// DeleteRows deletes a band of rows and returns the refreshed sheet.
func (s *Service) DeleteRows(ctx context.Context, session Session, sheetID string, start, count int) (map[string]any, error) {
	return s.mutateBand(ctx, session, sheetID, grid.AxisRow, start, count, false)
}

// InsertCols inserts a band of columns and returns the refreshed sheet.
func (s *Service) InsertCols(ctx context.Context, session Session, sheetID string, start, count int) (map[string]any, error) {
	return s.mutateBand(ctx, session, sheetID, grid.AxisCol, start, count, true)
}

// DeleteCols deletes a band of columns and returns the refreshed sheet.
func (s *Service) DeleteCols(ctx context.Context, session Session, sheetID string, start, count int) (map[string]any, error) {
	return s.mutateBand(ctx, session, sheetID, grid.AxisCol, start, count, false)
}

func (s *Service) mutateBand(ctx context.Context, session Session, sheetID string, axis grid.Axis, start, count int, insert bool) (map[string]any, error) {
	sheet, spreadsheet, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return nil, err
	}
	csSheet := spreadsheet.Kind == store.KindCS

	extent := sheet.NumRows
	sizes := sheet.RowHeights
	hidden := sheet.HiddenRows
	if axis == grid.AxisCol {
		extent = sheet.NumCols
		sizes = sheet.ColWidths
		hidden = sheet.HiddenCols
	}

	if insert {
		err = grid.ValidateInsert(axis, extent, start, count)
	} else {
		err = grid.ValidateDelete(extent, start, count)
	}
	if err != nil {
		return nil, mapGridError(err)
	}

	// Column mutations must not touch the protected pricing band.
	if axis == grid.AxisCol && csSheet && start < grid.CSProtectedCols {
		return nil, errConflict("cannot insert or delete within the protected column band")
	}

	p := store.BandParams{
		SheetID: sheetID,
		Start:   start,
		Count:   count,
	}
	if insert {
		p.NewExtent = extent + count
		p.SizeMap = grid.ShiftMapInsert(sizes, start, count)
		p.HiddenMap = grid.ShiftMapInsert(hidden, start, count)
		p.NewCells = buildBandCells(sheet, axis, start, count, csSheet)
	} else {
		p.NewExtent = extent - count
		p.SizeMap = grid.ShiftMapDelete(sizes, start, count)
		p.HiddenMap = grid.ShiftMapDelete(hidden, start, count)
	}

	switch {
	case axis == grid.AxisRow && insert:
		err = s.store.InsertRowBand(ctx, p)
	case axis == grid.AxisRow:
		err = s.store.DeleteRowBand(ctx, p)
	case insert:
		err = s.store.InsertColBand(ctx, p)
	default:
		err = s.store.DeleteColBand(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return s.GetSheetPayload(ctx, session, sheetID)
}

// SetRowHeight overrides one row's height in pixels.
func (s *Service) SetRowHeight(ctx context.Context, session Session, sheetID string, index, height int) error {
	sheet, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	if err := grid.ValidateSize(sheet.NumRows, index, height); err != nil {
		return mapGridError(err)
	}
	heights := make(map[int]int, len(sheet.RowHeights)+1)
	for k, v := range sheet.RowHeights {
		heights[k] = v
	}
	heights[index] = height
	return s.store.SaveRowHeights(ctx, sheetID, heights)
}

// SetColWidth overrides one column's width in pixels.
func (s *Service) SetColWidth(ctx context.Context, session Session, sheetID string, index, width int) error {
	sheet, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	if err := grid.ValidateSize(sheet.NumCols, index, width); err != nil {
		return mapGridError(err)
	}
	widths := make(map[int]int, len(sheet.ColWidths)+1)
	for k, v := range sheet.ColWidths {
		widths[k] = v
	}
	widths[index] = width
	return s.store.SaveColWidths(ctx, sheetID, widths)
}

// SetRowVisibility applies a batch of hidden-flag overwrites to rows.
// The batch is atomic: one invalid item rejects the whole request.
func (s *Service) SetRowVisibility(ctx context.Context, session Session, sheetID string, items []grid.VisibilityItem) error {
	sheet, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	hidden, err := grid.ApplyVisibilityBatch(sheet.HiddenRows, sheet.NumRows, items)
	if err != nil {
		return mapGridError(err)
	}
	return s.store.SaveHiddenRows(ctx, sheetID, hidden)
}

// SetColVisibility applies a batch of hidden-flag overwrites to columns.
func (s *Service) SetColVisibility(ctx context.Context, session Session, sheetID string, items []grid.VisibilityItem) error {
	sheet, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	hidden, err := grid.ApplyVisibilityBatch(sheet.HiddenCols, sheet.NumCols, items)
	if err != nil {
		return mapGridError(err)
	}
	return s.store.SaveHiddenCols(ctx, sheetID, hidden)
}

// EvaluatedGrid returns the sheet's cells with formulas replaced by their
// computed values.
func (s *Service) EvaluatedGrid(ctx context.Context, session Session, sheetID string) (map[string]any, error) {
	sheet, _, err := s.requireSheet(ctx, sheetID, session.UserID, PermView)
	if err != nil {
		return nil, err
	}
	cells, err := s.store.ListCells(ctx, sheetID)
	if err != nil {
		return nil, err
	}

	contents := make(map[string]string, len(cells))
	for _, cell := range cells {
		if cell.Content != nil && *cell.Content != "" {
			contents[formula.Ref(cell.Row, cell.Col)] = *cell.Content
		}
	}
	evaluated := s.formula.EvaluateGrid(contents)

	cellPayloads := make([]map[string]any, 0, len(cells))
	for _, cell := range cells {
		payload := cellPayload(cell)
		if v, ok := evaluated[formula.Ref(cell.Row, cell.Col)]; ok {
			payload["evaluated"] = v
		}
		cellPayloads = append(cellPayloads, payload)
	}
	return map[string]any{
		"id":      sheet.ID,
		"name":    sheet.Name,
		"numRows": sheet.NumRows,
		"numCols": sheet.NumCols,
		"cells":   cellPayloads,
	}, nil
}
