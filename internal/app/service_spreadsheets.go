package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"gridbook/api/internal/export"
	"gridbook/api/internal/grid"
	"gridbook/api/internal/history"
	"gridbook/api/internal/search"
	"gridbook/api/internal/store"
	"gridbook/api/internal/util"
)

var allowedKinds = map[string]struct{}{
	store.KindNormal: {},
	store.KindCS:     {},
}

var allowedPermissions = map[string]struct{}{
	store.PermissionView: {},
	store.PermissionEdit: {},
	"NONE":               {},
}

// buildSheet creates a sheet record plus its eagerly materialized cell grid.
// CS sheets mark the leading pricing band protected.
func buildSheet(spreadsheetID, name string, position, rows, cols int, csSheet bool) (store.Sheet, []store.Cell) {
	sheet := store.Sheet{
		ID:            util.NewID("sh"),
		SpreadsheetID: spreadsheetID,
		Name:          name,
		Position:      position,
		NumRows:       rows,
		NumCols:       cols,
		RowHeights:    map[int]int{},
		ColWidths:     map[int]int{},
		HiddenRows:    map[int]bool{},
		HiddenCols:    map[int]bool{},
	}
	cells := make([]store.Cell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, store.Cell{
				ID:        util.NewID("cell"),
				SheetID:   sheet.ID,
				Row:       r,
				Col:       c,
				Protected: grid.IsProtected(csSheet, c),
				Style:     map[string]string{},
			})
		}
	}
	return sheet, cells
}

// buildBandCells materializes the cells for an inserted band of rows or
// columns.
func buildBandCells(sheet store.Sheet, axis grid.Axis, start, count int, csSheet bool) []store.Cell {
	var cells []store.Cell
	if axis == grid.AxisRow {
		for r := start; r < start+count; r++ {
			for c := 0; c < sheet.NumCols; c++ {
				cells = append(cells, store.Cell{
					ID:        util.NewID("cell"),
					SheetID:   sheet.ID,
					Row:       r,
					Col:       c,
					Protected: grid.IsProtected(csSheet, c),
					Style:     map[string]string{},
				})
			}
		}
		return cells
	}
	for c := start; c < start+count; c++ {
		for r := 0; r < sheet.NumRows; r++ {
			cells = append(cells, store.Cell{
				ID:        util.NewID("cell"),
				SheetID:   sheet.ID,
				Row:       r,
				Col:       c,
				Protected: grid.IsProtected(csSheet, c),
				Style:     map[string]string{},
			})
		}
	}
	return cells
}

func (s *Service) CreateSpreadsheet(ctx context.Context, session Session, name, kind string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled spreadsheet"
	}
	if kind == "" {
		kind = store.KindNormal
	}
	if _, ok := allowedKinds[kind]; !ok {
		return nil, errValidation("kind must be NORMAL or CS")
	}

	spreadsheet := store.Spreadsheet{
		ID:      util.NewID("ss"),
		OwnerID: session.UserID,
		Kind:    kind,
		Name:    name,
	}
	sheet, cells := buildSheet(spreadsheet.ID, "Sheet1", 0, grid.DefaultRows, grid.DefaultCols, kind == store.KindCS)

	if err := s.store.CreateSpreadsheet(ctx, spreadsheet, sheet, cells); err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.EnsureRepo(spreadsheet.ID); err != nil {
			log.Printf("history: init repo for %s: %v", spreadsheet.ID, err)
		}
	}
	s.indexSpreadsheet(ctx, spreadsheet)

	return s.spreadsheetPayload(ctx, session, spreadsheet)
}

func (s *Service) ListSpreadsheets(ctx context.Context, session Session) ([]map[string]any, error) {
	listings, err := s.store.ListSpreadsheetsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(listings))
	for _, item := range listings {
		entry := map[string]any{
			"id":         item.ID,
			"name":       item.Name,
			"kind":       item.Kind,
			"ownerId":    item.OwnerID,
			"ownerName":  item.OwnerName,
			"permission": item.Permission,
			"updatedAt":  item.UpdatedAt,
		}
		if item.LastOpened != nil {
			entry["lastOpened"] = item.LastOpened
		}
		items = append(items, entry)
	}
	return items, nil
}

func (s *Service) GetSpreadsheet(ctx context.Context, session Session, spreadsheetID string) (map[string]any, error) {
	spreadsheet, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermView)
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchSpreadsheetOpened(ctx, spreadsheetID, session.UserID); err != nil {
		log.Printf("spreadsheet: touch %s: %v", spreadsheetID, err)
	}
	return s.spreadsheetPayload(ctx, session, spreadsheet)
}

func (s *Service) spreadsheetPayload(ctx context.Context, session Session, spreadsheet store.Spreadsheet) (map[string]any, error) {
	sheets, err := s.store.ListSheets(ctx, spreadsheet.ID)
	if err != nil {
		return nil, err
	}
	perm, err := s.resolvePermission(ctx, spreadsheet, session.UserID)
	if err != nil {
		return nil, err
	}

	sheetPayloads := make([]map[string]any, 0, len(sheets))
	for _, sheet := range sheets {
		cells, err := s.store.ListCells(ctx, sheet.ID)
		if err != nil {
			return nil, err
		}
		sheetPayloads = append(sheetPayloads, sheetPayload(sheet, cells))
	}

	permission := store.PermissionView
	if perm == PermEdit {
		permission = store.PermissionEdit
	}
	return map[string]any{
		"id":         spreadsheet.ID,
		"name":       spreadsheet.Name,
		"kind":       spreadsheet.Kind,
		"ownerId":    spreadsheet.OwnerID,
		"permission": permission,
		"sheets":     sheetPayloads,
	}, nil
}

func sheetPayload(sheet store.Sheet, cells []store.Cell) map[string]any {
	cellPayloads := make([]map[string]any, 0, len(cells))
	for _, cell := range cells {
		cellPayloads = append(cellPayloads, cellPayload(cell))
	}
	return map[string]any{
		"id":            sheet.ID,
		"spreadsheetId": sheet.SpreadsheetID,
		"name":          sheet.Name,
		"position":      sheet.Position,
		"color":         sheet.Color,
		"numRows":       sheet.NumRows,
		"numCols":       sheet.NumCols,
		"rowHeights":    sheet.RowHeights,
		"colWidths":     sheet.ColWidths,
		"hiddenRows":    sheet.HiddenRows,
		"hiddenCols":    sheet.HiddenCols,
		"cells":         cellPayloads,
	}
}

func cellPayload(cell store.Cell) map[string]any {
	payload := map[string]any{
		"id":        cell.ID,
		"row":       cell.Row,
		"col":       cell.Col,
		"protected": cell.Protected,
		"style":     cell.Style,
		"bgColor":   cell.BgColor,
		"color":     cell.Color,
		"hAlign":    cell.HAlign,
		"vAlign":    cell.VAlign,
	}
	if cell.Content != nil {
		payload["content"] = *cell.Content
	}
	return payload
}

func (s *Service) RenameSpreadsheet(ctx context.Context, session Session, spreadsheetID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errValidation("name is required")
	}
	spreadsheet, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermEdit)
	if err != nil {
		return err
	}
	if err := s.store.RenameSpreadsheet(ctx, spreadsheetID, name); err != nil {
		return err
	}
	spreadsheet.Name = name
	s.indexSpreadsheet(ctx, spreadsheet)
	return nil
}

func (s *Service) DeleteSpreadsheet(ctx context.Context, session Session, spreadsheetID string) error {
	if _, err := s.requireOwner(ctx, spreadsheetID, session.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteSpreadsheet(ctx, spreadsheetID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteSpreadsheet(spreadsheetID)
	}
	return nil
}

// Shares. Owner-only in both directions.

func (s *Service) ListShares(ctx context.Context, session Session, spreadsheetID string) ([]map[string]any, error) {
	if _, err := s.requireOwner(ctx, spreadsheetID, session.UserID); err != nil {
		return nil, err
	}
	shares, err := s.store.ListShares(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(shares))
	for _, share := range shares {
		items = append(items, map[string]any{
			"userId":     share.UserID,
			"email":      share.UserEmail,
			"name":       share.UserName,
			"permission": share.Permission,
		})
	}
	return items, nil
}

// SetShare grants, updates, or (permission NONE) revokes access for the
// user behind an email address.
func (s *Service) SetShare(ctx context.Context, session Session, spreadsheetID, targetEmail, permission string) error {
	permission = strings.ToUpper(strings.TrimSpace(permission))
	if _, ok := allowedPermissions[permission]; !ok {
		return errValidation("permission must be VIEW, EDIT, or NONE")
	}

	spreadsheet, err := s.requireOwner(ctx, spreadsheetID, session.UserID)
	if err != nil {
		return err
	}

	target, err := s.store.GetUserByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("no user with that email")
		}
		return err
	}
	if target.ID == spreadsheet.OwnerID {
		return errValidation("cannot share with the owner")
	}

	if permission == "NONE" {
		if err := s.store.DeleteShare(ctx, spreadsheetID, target.ID); err != nil {
			return err
		}
		s.indexSpreadsheet(ctx, spreadsheet)
		return nil
	}

	if err := s.store.UpsertShare(ctx, spreadsheetID, target.ID, permission); err != nil {
		return err
	}
	s.indexSpreadsheet(ctx, spreadsheet)

	if s.email != nil && s.email.IsConfigured() {
		go func() {
			openURL := fmt.Sprintf("%s/spreadsheet/%s", strings.TrimSuffix(s.cfg.AppBaseURL, "/"), spreadsheetID)
			if err := s.email.SendShareEmail(target.Email, target.DisplayName, session.UserName, spreadsheet.Name, permission, openURL); err != nil {
				log.Printf("email: share notification to %s: %v", target.Email, err)
			}
		}()
	}
	return nil
}

// indexSpreadsheet refreshes the search index entry with the current viewer
// set. Fire-and-forget; the index is eventually consistent.
func (s *Service) indexSpreadsheet(ctx context.Context, spreadsheet store.Spreadsheet) {
	if s.search == nil {
		return
	}
	viewers, err := s.store.ViewerIDs(ctx, spreadsheet.ID)
	if err != nil {
		log.Printf("search: viewers for %s: %v", spreadsheet.ID, err)
		return
	}
	s.search.IndexSpreadsheet(search.SpreadsheetRecord{
		ID:      spreadsheet.ID,
		Name:    spreadsheet.Name,
		Kind:    spreadsheet.Kind,
		Viewers: viewers,
	})
}

// indexCell pushes one cell's content into the search index.
func (s *Service) indexCell(ctx context.Context, spreadsheetID string, cell store.Cell) {
	if s.search == nil {
		return
	}
	viewers, err := s.store.ViewerIDs(ctx, spreadsheetID)
	if err != nil {
		return
	}
	content := ""
	if cell.Content != nil {
		content = *cell.Content
	}
	s.search.IndexCells([]search.CellRecord{{
		ID:            cell.ID,
		SpreadsheetID: spreadsheetID,
		SheetID:       cell.SheetID,
		Content:       content,
		Row:           cell.Row,
		Col:           cell.Col,
		Viewers:       viewers,
	}})
}

// Search runs a permission-scoped search for the caller.
func (s *Service) Search(ctx context.Context, session Session, text string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:   text,
		UserID: session.UserID,
		Limit:  limit,
		Offset: offset,
	}), nil
}

// Export renders the whole spreadsheet in the requested format.
func (s *Service) Export(ctx context.Context, session Session, spreadsheetID string, format export.Format) (*export.Result, error) {
	if s.exports == nil {
		return nil, domainError(503, "EXPORT_UNAVAILABLE", "Export not configured", nil)
	}
	spreadsheet, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermView)
	if err != nil {
		return nil, err
	}
	wb, err := s.buildWorkbook(ctx, spreadsheet)
	if err != nil {
		return nil, err
	}
	return s.exports.Export(wb, format)
}

func (s *Service) buildWorkbook(ctx context.Context, spreadsheet store.Spreadsheet) (export.Workbook, error) {
	sheets, err := s.store.ListSheets(ctx, spreadsheet.ID)
	if err != nil {
		return export.Workbook{}, err
	}
	wb := export.Workbook{Name: spreadsheet.Name}
	for _, sheet := range sheets {
		cells, err := s.store.ListCells(ctx, sheet.ID)
		if err != nil {
			return export.Workbook{}, err
		}
		wb.Sheets = append(wb.Sheets, export.SheetData{Sheet: sheet, Cells: cells})
	}
	return wb, nil
}

// Snapshots. Each snapshot commits the full spreadsheet JSON into the
// per-spreadsheet git repository.

func (s *Service) CreateSnapshot(ctx context.Context, session Session, spreadsheetID, message string) (map[string]any, error) {
	if s.history == nil {
		return nil, domainError(503, "HISTORY_UNAVAILABLE", "Snapshot history not configured", nil)
	}
	spreadsheet, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermEdit)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		message = "Snapshot"
	}

	sheets, err := s.store.ListSheets(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	sheetStates := make([]map[string]any, 0, len(sheets))
	for _, sheet := range sheets {
		cells, err := s.store.ListCells(ctx, sheet.ID)
		if err != nil {
			return nil, err
		}
		sheetStates = append(sheetStates, sheetPayload(sheet, cells))
	}
	raw, err := json.Marshal(sheetStates)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot sheets: %w", err)
	}

	if err := s.history.EnsureRepo(spreadsheetID); err != nil {
		return nil, err
	}
	commit, err := s.history.CommitSnapshot(spreadsheetID, history.Snapshot{
		SpreadsheetID: spreadsheetID,
		Name:          spreadsheet.Name,
		Kind:          spreadsheet.Kind,
		Sheets:        raw,
	}, session.UserName, message)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"hash":      commit.Hash,
		"message":   commit.Message,
		"author":    commit.Author,
		"createdAt": commit.CreatedAt,
	}, nil
}

func (s *Service) ListSnapshots(ctx context.Context, session Session, spreadsheetID string, limit int) ([]map[string]any, error) {
	if s.history == nil {
		return nil, domainError(503, "HISTORY_UNAVAILABLE", "Snapshot history not configured", nil)
	}
	if _, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermView); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	commits, err := s.history.History(spreadsheetID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(commits))
	for _, commit := range commits {
		items = append(items, map[string]any{
			"hash":      commit.Hash,
			"message":   commit.Message,
			"author":    commit.Author,
			"createdAt": commit.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) GetSnapshot(ctx context.Context, session Session, spreadsheetID, hash string) (history.Snapshot, error) {
	if s.history == nil {
		return history.Snapshot{}, domainError(503, "HISTORY_UNAVAILABLE", "Snapshot history not configured", nil)
	}
	if _, err := s.requireSpreadsheet(ctx, spreadsheetID, session.UserID, PermView); err != nil {
		return history.Snapshot{}, err
	}
	return s.history.GetSnapshot(spreadsheetID, hash)
}
