package app

import (
	"context"
	"database/sql"
	"errors"

	"gridbook/api/internal/store"
)

// Permission levels, resolved fresh on every request.
type Permission int

const (
	PermNone Permission = iota
	PermView
	PermEdit
)

// resolvePermission determines the caller's access level on a spreadsheet:
// owner gets EDIT, otherwise the share row decides, otherwise none.
func (s *Service) resolvePermission(ctx context.Context, spreadsheet store.Spreadsheet, userID string) (Permission, error) {
	if spreadsheet.OwnerID == userID {
		return PermEdit, nil
	}
	share, err := s.store.GetShare(ctx, spreadsheet.ID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PermNone, nil
		}
		return PermNone, err
	}
	switch share.Permission {
	case store.PermissionEdit:
		return PermEdit, nil
	case store.PermissionView:
		return PermView, nil
	default:
		return PermNone, nil
	}
}

// requireSpreadsheet loads a spreadsheet and checks the caller holds at
// least the wanted permission level.
func (s *Service) requireSpreadsheet(ctx context.Context, spreadsheetID, userID string, want Permission) (store.Spreadsheet, error) {
	spreadsheet, err := s.store.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return store.Spreadsheet{}, err
	}
	perm, err := s.resolvePermission(ctx, spreadsheet, userID)
	if err != nil {
		return store.Spreadsheet{}, err
	}
	if perm < want {
		return store.Spreadsheet{}, errForbidden("insufficient permission")
	}
	return spreadsheet, nil
}

// requireSheet resolves a sheet through its spreadsheet with the wanted
// permission level.
func (s *Service) requireSheet(ctx context.Context, sheetID, userID string, want Permission) (store.Sheet, store.Spreadsheet, error) {
	sheet, err := s.store.GetSheet(ctx, sheetID)
	if err != nil {
		return store.Sheet{}, store.Spreadsheet{}, err
	}
	spreadsheet, err := s.requireSpreadsheet(ctx, sheet.SpreadsheetID, userID, want)
	if err != nil {
		return store.Sheet{}, store.Spreadsheet{}, err
	}
	return sheet, spreadsheet, nil
}

// requireOwner loads a spreadsheet and checks the caller owns it. Share
// management and spreadsheet deletion are owner-only.
func (s *Service) requireOwner(ctx context.Context, spreadsheetID, userID string) (store.Spreadsheet, error) {
	spreadsheet, err := s.store.GetSpreadsheet(ctx, spreadsheetID)
	if err != nil {
		return store.Spreadsheet{}, err
	}
	if spreadsheet.OwnerID != userID {
		return store.Spreadsheet{}, errForbidden("owner only")
	}
	return spreadsheet, nil
}
