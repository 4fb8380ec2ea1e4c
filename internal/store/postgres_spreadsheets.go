package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) CreateSpreadsheet(ctx context.Context, spreadsheet Spreadsheet, sheet Sheet, cells []Cell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create spreadsheet: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO spreadsheets (id, owner_id, kind, name)
		VALUES ($1, $2, $3, $4)
	`, spreadsheet.ID, spreadsheet.OwnerID, spreadsheet.Kind, spreadsheet.Name); err != nil {
		return fmt.Errorf("insert spreadsheet: %w", err)
	}

	if err := insertSheetTx(ctx, tx, sheet); err != nil {
		return err
	}
	if err := bulkInsertCells(ctx, tx, cells); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create spreadsheet: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSpreadsheet(ctx context.Context, spreadsheetID string) (Spreadsheet, error) {
	var item Spreadsheet
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, name, last_opened, created_at, updated_at
		FROM spreadsheets
		WHERE id=$1
	`, spreadsheetID).Scan(&item.ID, &item.OwnerID, &item.Kind, &item.Name, &item.LastOpened, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Spreadsheet{}, err
	}
	return item, nil
}

// ListSpreadsheetsForUser returns owned spreadsheets plus shared ones, most
// recently opened first.
func (s *PostgresStore) ListSpreadsheetsForUser(ctx context.Context, userID string) ([]SpreadsheetListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ss.id, ss.owner_id, ss.kind, ss.name, ss.last_opened, ss.created_at, ss.updated_at,
			'EDIT' AS permission, u.display_name
		FROM spreadsheets ss
		JOIN users u ON u.id = ss.owner_id
		WHERE ss.owner_id = $1
		UNION ALL
		SELECT ss.id, ss.owner_id, ss.kind, ss.name, sh.last_opened, ss.created_at, ss.updated_at,
			sh.permission, u.display_name
		FROM spreadsheet_shares sh
		JOIN spreadsheets ss ON ss.id = sh.spreadsheet_id
		JOIN users u ON u.id = ss.owner_id
		WHERE sh.user_id = $1
		ORDER BY last_opened DESC NULLS LAST, updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list spreadsheets: %w", err)
	}
	defer rows.Close()

	items := make([]SpreadsheetListing, 0)
	for rows.Next() {
		var item SpreadsheetListing
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Kind, &item.Name, &item.LastOpened, &item.CreatedAt, &item.UpdatedAt, &item.Permission, &item.OwnerName); err != nil {
			return nil, fmt.Errorf("scan spreadsheet: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spreadsheets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RenameSpreadsheet(ctx context.Context, spreadsheetID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE spreadsheets SET name=$2, updated_at=NOW() WHERE id=$1
	`, spreadsheetID, name)
	if err != nil {
		return fmt.Errorf("rename spreadsheet: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSpreadsheet(ctx context.Context, spreadsheetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM spreadsheets WHERE id=$1`, spreadsheetID)
	if err != nil {
		return fmt.Errorf("delete spreadsheet: %w", err)
	}
	return nil
}

// TouchSpreadsheetOpened stamps last_opened on the spreadsheet for the owner
// or on the share row for everyone else.
func (s *PostgresStore) TouchSpreadsheetOpened(ctx context.Context, spreadsheetID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE spreadsheets SET last_opened=NOW() WHERE id=$1 AND owner_id=$2
	`, spreadsheetID, userID)
	if err != nil {
		return fmt.Errorf("touch spreadsheet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch spreadsheet rows: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE spreadsheet_shares SET last_opened=NOW() WHERE spreadsheet_id=$1 AND user_id=$2
	`, spreadsheetID, userID); err != nil {
		return fmt.Errorf("touch share: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShare(ctx context.Context, spreadsheetID, userID string) (Share, error) {
	var share Share
	err := s.db.QueryRowContext(ctx, `
		SELECT spreadsheet_id, user_id, permission, last_opened, created_at, updated_at
		FROM spreadsheet_shares
		WHERE spreadsheet_id=$1 AND user_id=$2
	`, spreadsheetID, userID).Scan(&share.SpreadsheetID, &share.UserID, &share.Permission, &share.LastOpened, &share.CreatedAt, &share.UpdatedAt)
	if err != nil {
		return Share{}, err
	}
	return share, nil
}

func (s *PostgresStore) ListShares(ctx context.Context, spreadsheetID string) ([]Share, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sh.spreadsheet_id, sh.user_id, sh.permission, sh.last_opened, sh.created_at, sh.updated_at,
			u.email, u.display_name
		FROM spreadsheet_shares sh
		JOIN users u ON u.id = sh.user_id
		WHERE sh.spreadsheet_id=$1
		ORDER BY sh.created_at ASC
	`, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	items := make([]Share, 0)
	for rows.Next() {
		var item Share
		if err := rows.Scan(&item.SpreadsheetID, &item.UserID, &item.Permission, &item.LastOpened, &item.CreatedAt, &item.UpdatedAt, &item.UserEmail, &item.UserName); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shares: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertShare(ctx context.Context, spreadsheetID, userID, permission string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spreadsheet_shares (spreadsheet_id, user_id, permission)
		VALUES ($1, $2, $3)
		ON CONFLICT (spreadsheet_id, user_id) DO UPDATE SET permission=EXCLUDED.permission, updated_at=NOW()
	`, spreadsheetID, userID, permission)
	if err != nil {
		return fmt.Errorf("upsert share: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteShare(ctx context.Context, spreadsheetID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM spreadsheet_shares WHERE spreadsheet_id=$1 AND user_id=$2
	`, spreadsheetID, userID)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return nil
}

// SearchSpreadsheets is the Postgres fallback for the search facade: ILIKE
// over spreadsheet names and cell contents, restricted to spreadsheets the
// user owns or was granted.
func (s *PostgresStore) SearchSpreadsheets(ctx context.Context, userID, query string, limit, offset int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH visible AS (
			SELECT id FROM spreadsheets WHERE owner_id=$1
			UNION
			SELECT spreadsheet_id FROM spreadsheet_shares WHERE user_id=$1
		)
		SELECT 'spreadsheet', ss.id, '', ss.name, ss.name, 0, 0
		FROM spreadsheets ss
		JOIN visible v ON v.id = ss.id
		WHERE ss.name ILIKE '%' || $2 || '%'
		UNION ALL
		SELECT 'cell', sh.spreadsheet_id, c.sheet_id, ss.name, COALESCE(c.content, ''), c.row_index, c.col_index
		FROM cells c
		JOIN sheets sh ON sh.id = c.sheet_id
		JOIN spreadsheets ss ON ss.id = sh.spreadsheet_id
		JOIN visible v ON v.id = sh.spreadsheet_id
		WHERE c.content ILIKE '%' || $2 || '%'
		LIMIT $3 OFFSET $4
	`, userID, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search spreadsheets: %w", err)
	}
	defer rows.Close()

	items := make([]SearchHit, 0)
	for rows.Next() {
		var item SearchHit
		if err := rows.Scan(&item.Type, &item.SpreadsheetID, &item.SheetID, &item.Title, &item.Snippet, &item.Row, &item.Col); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return items, nil
}

// SearchHit is one fallback search result row.
type SearchHit struct {
	Type          string
	SpreadsheetID string
	SheetID       string
	Title         string
	Snippet       string
	Row           int
	Col           int
}

// ViewerIDs returns the user ids allowed to see a spreadsheet: the owner
// plus every share grantee. Used when indexing into the search engine.
func (s *PostgresStore) ViewerIDs(ctx context.Context, spreadsheetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id FROM spreadsheets WHERE id=$1
		UNION
		SELECT user_id FROM spreadsheet_shares WHERE spreadsheet_id=$1
	`, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("list viewers: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan viewer: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate viewers: %w", err)
	}
	if len(ids) == 0 {
		return nil, sql.ErrNoRows
	}
	return ids, nil
}
