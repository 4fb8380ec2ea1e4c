package app

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"gridbook/api/internal/grid"
	"gridbook/api/internal/pricing"
	"gridbook/api/internal/store"
)

// ContentEdit is one entry of a batch content write.
type ContentEdit struct {
	CellID  string
	Content string
}

// EditCellContents applies a batch of content edits. Edits to the link or
// quantity column of a CS sheet trigger the price cascade; the derived
// columns themselves reject direct edits. Returns the refreshed sheet the
// edits landed on.
func (s *Service) EditCellContents(ctx context.Context, session Session, edits []ContentEdit) (map[string]any, error) {
	if len(edits) == 0 {
		return nil, errValidation("at least one content edit is required")
	}

	var sheetID string
	for _, edit := range edits {
		cell, err := s.store.GetCell(ctx, edit.CellID)
		if err != nil {
			return nil, err
		}
		sheet, spreadsheet, err := s.requireSheet(ctx, cell.SheetID, session.UserID, PermEdit)
		if err != nil {
			return nil, err
		}
		if sheetID == "" {
			sheetID = sheet.ID
		}

		if spreadsheet.Kind == store.KindCS && cell.Protected {
			if err := s.applyPricedEdit(ctx, sheet, cell, edit.Content); err != nil {
				return nil, err
			}
			continue
		}

		if err := s.store.ApplyContentEditWithDerived(ctx, cell.SheetID, cell.ID, contentPtr(edit.Content), cell.Row, nil); err != nil {
			return nil, err
		}
		cell.Content = contentPtr(edit.Content)
		s.indexCell(ctx, sheet.SpreadsheetID, cell)
	}
	return s.GetSheetPayload(ctx, session, sheetID)
}

// applyPricedEdit handles a content edit inside the protected band of a CS
// sheet. The price lookup happens before any write so an unknown item leaves
// the row untouched.
func (s *Service) applyPricedEdit(ctx context.Context, sheet store.Sheet, cell store.Cell, content string) error {
	switch cell.Col {
	case pricing.ColLink:
		return s.applyLinkEdit(ctx, sheet, cell, content)
	case pricing.ColQuantity:
		return s.applyQuantityEdit(ctx, sheet, cell, content)
	default:
		return errForbidden("derived price cells are not editable")
	}
}

func (s *Service) applyLinkEdit(ctx context.Context, sheet store.Sheet, cell store.Cell, content string) error {
	name, ok := pricing.ItemNameFromLink(content)
	if !ok {
		// Clearing the link clears the derived columns. Quantity stays.
		derived := make([]store.CellWrite, 0, len(pricing.DerivedCols))
		for _, col := range pricing.DerivedCols {
			derived = append(derived, store.CellWrite{Row: cell.Row, Col: col, Content: nil})
		}
		return s.store.ApplyContentEditWithDerived(ctx, sheet.ID, cell.ID, nil, cell.Row, derived)
	}

	quantity, err := s.rowQuantity(ctx, sheet.ID, cell.Row)
	if err != nil {
		return err
	}
	derived, err := s.derivedWrites(ctx, name, cell.Row, quantity)
	if err != nil {
		return err
	}
	return s.store.ApplyContentEditWithDerived(ctx, sheet.ID, cell.ID, contentPtr(content), cell.Row, derived)
}

func (s *Service) applyQuantityEdit(ctx context.Context, sheet store.Sheet, cell store.Cell, content string) error {
	quantity, err := pricing.ParseQuantity(content)
	if err != nil {
		if errors.Is(err, pricing.ErrNegativeQuantity) {
			return errValidation(err.Error())
		}
		return err
	}

	linkCell, err := s.store.GetCellAt(ctx, sheet.ID, cell.Row, pricing.ColLink)
	if err != nil {
		return err
	}
	link := ""
	if linkCell.Content != nil {
		link = *linkCell.Content
	}
	name, ok := pricing.ItemNameFromLink(link)
	if !ok {
		// No link on the row yet, just record the quantity.
		return s.store.ApplyContentEditWithDerived(ctx, sheet.ID, cell.ID, contentPtr(content), cell.Row, nil)
	}

	derived, err := s.derivedWrites(ctx, name, cell.Row, quantity)
	if err != nil {
		return err
	}
	return s.store.ApplyContentEditWithDerived(ctx, sheet.ID, cell.ID, contentPtr(content), cell.Row, derived)
}

// rowQuantity reads and parses the quantity cell of a CS row.
func (s *Service) rowQuantity(ctx context.Context, sheetID string, rowIdx int) (float64, error) {
	quantityCell, err := s.store.GetCellAt(ctx, sheetID, rowIdx, pricing.ColQuantity)
	if err != nil {
		return 0, err
	}
	content := ""
	if quantityCell.Content != nil {
		content = *quantityCell.Content
	}
	quantity, err := pricing.ParseQuantity(content)
	if err != nil {
		if errors.Is(err, pricing.ErrNegativeQuantity) {
			return 0, errValidation(err.Error())
		}
		return 0, err
	}
	return quantity, nil
}

// derivedWrites looks up the market quote and computes the derived column
// writes. An unknown item name is a NOT_FOUND before anything is written.
func (s *Service) derivedWrites(ctx context.Context, name string, rowIdx int, quantity float64) ([]store.CellWrite, error) {
	price, err := s.store.GetItemPrice(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("unknown market item " + strconv.Quote(name))
		}
		return nil, err
	}
	computed := pricing.Compute(pricing.Quote{
		PriceLatest:   price.PriceLatest,
		PriceReal:     price.PriceReal,
		BuyOrderPrice: price.BuyOrderPrice,
	}, quantity)

	contents := computed.Contents()
	writes := make([]store.CellWrite, 0, len(contents))
	for _, col := range pricing.DerivedCols {
		writes = append(writes, store.CellWrite{Row: rowIdx, Col: col, Content: contentPtr(contents[col])})
	}
	return writes, nil
}

// StyleEdit is one entry of a batch style merge.
type StyleEdit struct {
	CellID string
	Style  map[string]string
}

// EditCellStyles merges style maps into cells. A fontSize entry may grow the
// row height; that grow is written atomically with the style. Returns the
// updated cells.
func (s *Service) EditCellStyles(ctx context.Context, session Session, edits []StyleEdit) ([]map[string]any, error) {
	if len(edits) == 0 {
		return nil, errValidation("at least one style edit is required")
	}
	updated := make([]map[string]any, 0, len(edits))
	for _, edit := range edits {
		cell, err := s.store.GetCell(ctx, edit.CellID)
		if err != nil {
			return nil, err
		}
		sheet, _, err := s.requireSheet(ctx, cell.SheetID, session.UserID, PermEdit)
		if err != nil {
			return nil, err
		}

		merged := make(map[string]string, len(cell.Style)+len(edit.Style))
		for k, v := range cell.Style {
			merged[k] = v
		}
		for k, v := range edit.Style {
			if v == "" {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}

		grow := 0
		if raw, ok := merged["fontSize"]; ok {
			size, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errValidation("fontSize must be an integer")
			}
			if err := grid.ValidateFontSize(size); err != nil {
				return nil, mapGridError(err)
			}
			required := grid.RequiredRowHeight(size)
			if required > grid.SizeAt(sheet.RowHeights, cell.Row, grid.DefaultRowHeight) {
				grow = required
			}
		}

		if grow > 0 {
			heights := make(map[int]int, len(sheet.RowHeights)+1)
			for k, v := range sheet.RowHeights {
				heights[k] = v
			}
			heights[cell.Row] = grow
			err = s.store.UpdateCellStyleAndRowHeight(ctx, cell.ID, merged, sheet.ID, heights)
		} else {
			err = s.store.UpdateCellStyle(ctx, cell.ID, merged)
		}
		if err != nil {
			return nil, err
		}
		cell.Style = merged
		updated = append(updated, cellPayload(cell))
	}
	return updated, nil
}

// ColorEdit is one entry of a batch single-attribute cell write.
type ColorEdit struct {
	CellID string
	Value  string
}

type cellAttr int

const (
	attrBgColor cellAttr = iota
	attrColor
	attrHAlign
	attrVAlign
)

var validAligns = map[cellAttr]map[string]struct{}{
	attrHAlign: {"left": {}, "center": {}, "right": {}},
	attrVAlign: {"top": {}, "middle": {}, "bottom": {}},
}

// EditCellBgColors sets the background color on a batch of cells.
func (s *Service) EditCellBgColors(ctx context.Context, session Session, edits []ColorEdit) ([]map[string]any, error) {
	return s.editCellAttr(ctx, session, edits, attrBgColor)
}

// EditCellColors sets the text color on a batch of cells.
func (s *Service) EditCellColors(ctx context.Context, session Session, edits []ColorEdit) ([]map[string]any, error) {
	return s.editCellAttr(ctx, session, edits, attrColor)
}

// EditCellHAlignments sets the horizontal alignment on a batch of cells.
func (s *Service) EditCellHAlignments(ctx context.Context, session Session, edits []ColorEdit) ([]map[string]any, error) {
	return s.editCellAttr(ctx, session, edits, attrHAlign)
}

// EditCellVAlignments sets the vertical alignment on a batch of cells.
func (s *Service) EditCellVAlignments(ctx context.Context, session Session, edits []ColorEdit) ([]map[string]any, error) {
	return s.editCellAttr(ctx, session, edits, attrVAlign)
}

func (s *Service) editCellAttr(ctx context.Context, session Session, edits []ColorEdit, attr cellAttr) ([]map[string]any, error) {
	if len(edits) == 0 {
		return nil, errValidation("at least one edit is required")
	}
	updated := make([]map[string]any, 0, len(edits))
	for _, edit := range edits {
		cell, err := s.store.GetCell(ctx, edit.CellID)
		if err != nil {
			return nil, err
		}
		if _, _, err := s.requireSheet(ctx, cell.SheetID, session.UserID, PermEdit); err != nil {
			return nil, err
		}

		value := strings.TrimSpace(edit.Value)
		if allowed, ok := validAligns[attr]; ok && value != "" {
			if _, ok := allowed[value]; !ok {
				return nil, errValidation("invalid alignment value")
			}
		}

		switch attr {
		case attrBgColor:
			err = s.store.UpdateCellBgColor(ctx, cell.ID, value)
			cell.BgColor = value
		case attrColor:
			err = s.store.UpdateCellColor(ctx, cell.ID, value)
			cell.Color = value
		case attrHAlign:
			err = s.store.UpdateCellHAlign(ctx, cell.ID, value)
			cell.HAlign = value
		case attrVAlign:
			err = s.store.UpdateCellVAlign(ctx, cell.ID, value)
			cell.VAlign = value
		}
		if err != nil {
			return nil, err
		}
		updated = append(updated, cellPayload(cell))
	}
	return updated, nil
}

func contentPtr(content string) *string {
	if content == "" {
		return nil
	}
	return &content
}
