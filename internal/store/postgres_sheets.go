package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const sheetColumns = `id, spreadsheet_id, name, position, color, num_rows, num_cols,
	row_heights, col_widths, hidden_rows, hidden_cols, created_at, updated_at`

func scanSheet(row interface{ Scan(...any) error }) (Sheet, error) {
	var item Sheet
	var rowHeights, colWidths, hiddenRows, hiddenCols []byte
	err := row.Scan(
		&item.ID,
		&item.SpreadsheetID,
		&item.Name,
		&item.Position,
		&item.Color,
		&item.NumRows,
		&item.NumCols,
		&rowHeights,
		&colWidths,
		&hiddenRows,
		&hiddenCols,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Sheet{}, err
	}
	if item.RowHeights, err = decodeIntMap(rowHeights); err != nil {
		return Sheet{}, err
	}
	if item.ColWidths, err = decodeIntMap(colWidths); err != nil {
		return Sheet{}, err
	}
	if item.HiddenRows, err = decodeBoolMap(hiddenRows); err != nil {
		return Sheet{}, err
	}
	if item.HiddenCols, err = decodeBoolMap(hiddenCols); err != nil {
		return Sheet{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetSheet(ctx context.Context, sheetID string) (Sheet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sheetColumns+` FROM sheets WHERE id=$1`, sheetID)
	return scanSheet(row)
}

func (s *PostgresStore) ListSheets(ctx context.Context, spreadsheetID string) ([]Sheet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sheetColumns+` FROM sheets WHERE spreadsheet_id=$1 ORDER BY position ASC
	`, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()

	items := make([]Sheet, 0)
	for rows.Next() {
		item, err := scanSheet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SheetCount(ctx context.Context, spreadsheetID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheets WHERE spreadsheet_id=$1`, spreadsheetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sheets: %w", err)
	}
	return count, nil
}

func insertSheetTx(ctx context.Context, tx *sql.Tx, sheet Sheet) error {
	rowHeights, err := encodeIntMap(sheet.RowHeights)
	if err != nil {
		return err
	}
	colWidths, err := encodeIntMap(sheet.ColWidths)
	if err != nil {
		return err
	}
	hiddenRows, err := encodeBoolMap(sheet.HiddenRows)
	if err != nil {
		return err
	}
	hiddenCols, err := encodeBoolMap(sheet.HiddenCols)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sheets (id, spreadsheet_id, name, position, color, num_rows, num_cols, row_heights, col_widths, hidden_rows, hidden_cols)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10::jsonb, $11::jsonb)
	`, sheet.ID, sheet.SpreadsheetID, sheet.Name, sheet.Position, sheet.Color, sheet.NumRows, sheet.NumCols, rowHeights, colWidths, hiddenRows, hiddenCols); err != nil {
		return fmt.Errorf("insert sheet: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSheetWithCells(ctx context.Context, sheet Sheet, cells []Cell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert sheet: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertSheetTx(ctx, tx, sheet); err != nil {
		return err
	}
	if err := bulkInsertCells(ctx, tx, cells); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert sheet: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSheetMeta(ctx context.Context, sheetID, name, color string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET name=COALESCE(NULLIF($2, ''), name), color=COALESCE(NULLIF($3, ''), color), updated_at=NOW()
		WHERE id=$1
	`, sheetID, name, color)
	if err != nil {
		return fmt.Errorf("update sheet meta: %w", err)
	}
	return nil
}

// DeleteSheetAndRenumber removes a sheet and closes the position gap so
// sibling indices stay a contiguous 0..n-1 run.
func (s *PostgresStore) DeleteSheetAndRenumber(ctx context.Context, sheetID, spreadsheetID string, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete sheet: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheets WHERE id=$1`, sheetID); err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sheets SET position=position-1, updated_at=NOW()
		WHERE spreadsheet_id=$1 AND position > $2
	`, spreadsheetID, position); err != nil {
		return fmt.Errorf("renumber sheets: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete sheet: %w", err)
	}
	return nil
}

// MoveSheet shifts the intervening siblings by one and drops the sheet at
// its new position.
func (s *PostgresStore) MoveSheet(ctx context.Context, spreadsheetID, sheetID string, oldPos, newPos int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move sheet: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if newPos < oldPos {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sheets SET position=position+1, updated_at=NOW()
			WHERE spreadsheet_id=$1 AND position >= $2 AND position < $3
		`, spreadsheetID, newPos, oldPos); err != nil {
			return fmt.Errorf("shift sheets up: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sheets SET position=position-1, updated_at=NOW()
			WHERE spreadsheet_id=$1 AND position > $2 AND position <= $3
		`, spreadsheetID, oldPos, newPos); err != nil {
			return fmt.Errorf("shift sheets down: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sheets SET position=$2, updated_at=NOW() WHERE id=$1
	`, sheetID, newPos); err != nil {
		return fmt.Errorf("place sheet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move sheet: %w", err)
	}
	return nil
}

// Geometry map persistence. Each overwrite is a single UPDATE, so partial
// application cannot happen.

func (s *PostgresStore) SaveRowHeights(ctx context.Context, sheetID string, heights map[int]int) error {
	raw, err := encodeIntMap(heights)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET row_heights=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, sheetID, raw); err != nil {
		return fmt.Errorf("save row heights: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveColWidths(ctx context.Context, sheetID string, widths map[int]int) error {
	raw, err := encodeIntMap(widths)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET col_widths=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, sheetID, raw); err != nil {
		return fmt.Errorf("save col widths: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveHiddenRows(ctx context.Context, sheetID string, hidden map[int]bool) error {
	raw, err := encodeBoolMap(hidden)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET hidden_rows=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, sheetID, raw); err != nil {
		return fmt.Errorf("save hidden rows: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveHiddenCols(ctx context.Context, sheetID string, hidden map[int]bool) error {
	raw, err := encodeBoolMap(hidden)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE sheets SET hidden_cols=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, sheetID, raw); err != nil {
		return fmt.Errorf("save hidden cols: %w", err)
	}
	return nil
}

// BandParams carries a fully computed band mutation: the cell shifts happen
// in SQL, the renumbered geometry maps and new extent were computed by the
// grid engine, and NewCells (insert only) are the eagerly materialized
// cells for the inserted indices.
type BandParams struct {
	SheetID    string
	Start      int
	Count      int
	NewExtent  int
	NewCells   []Cell
	SizeMap    map[int]int
	HiddenMap  map[int]bool
}

func (s *PostgresStore) InsertRowBand(ctx context.Context, p BandParams) error {
	return s.applyBand(ctx, p, "row_index", "num_rows", "row_heights", "hidden_rows", true)
}

func (s *PostgresStore) DeleteRowBand(ctx context.Context, p BandParams) error {
	return s.applyBand(ctx, p, "row_index", "num_rows", "row_heights", "hidden_rows", false)
}

func (s *PostgresStore) InsertColBand(ctx context.Context, p BandParams) error {
	return s.applyBand(ctx, p, "col_index", "num_cols", "col_widths", "hidden_cols", true)
}

func (s *PostgresStore) DeleteColBand(ctx context.Context, p BandParams) error {
	return s.applyBand(ctx, p, "col_index", "num_cols", "col_widths", "hidden_cols", false)
}

func (s *PostgresStore) applyBand(ctx context.Context, p BandParams, coordCol, extentCol, sizeCol, hiddenCol string, insert bool) error {
	sizeRaw, err := encodeIntMap(p.SizeMap)
	if err != nil {
		return err
	}
	hiddenRaw, err := encodeBoolMap(p.HiddenMap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin band mutation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if insert {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE cells SET %[1]s = %[1]s + $2, updated_at=NOW()
			WHERE sheet_id=$1 AND %[1]s >= $3
		`, coordCol), p.SheetID, p.Count, p.Start); err != nil {
			return fmt.Errorf("shift cells for insert: %w", err)
		}
		if err := bulkInsertCells(ctx, tx, p.NewCells); err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM cells WHERE sheet_id=$1 AND %[1]s >= $2 AND %[1]s < $3
		`, coordCol), p.SheetID, p.Start, p.Start+p.Count); err != nil {
			return fmt.Errorf("delete band cells: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE cells SET %[1]s = %[1]s - $2, updated_at=NOW()
			WHERE sheet_id=$1 AND %[1]s >= $3
		`, coordCol), p.SheetID, p.Count, p.Start+p.Count); err != nil {
			return fmt.Errorf("shift cells for delete: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE sheets SET %s=$2, %s=$3::jsonb, %s=$4::jsonb, updated_at=NOW()
		WHERE id=$1
	`, extentCol, sizeCol, hiddenCol), p.SheetID, p.NewExtent, sizeRaw, hiddenRaw); err != nil {
		return fmt.Errorf("update sheet extent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit band mutation: %w", err)
	}
	return nil
}

// bulkInsertCells writes cells in chunks to stay well under the driver's
// parameter limit.
func bulkInsertCells(ctx context.Context, tx *sql.Tx, cells []Cell) error {
	const chunkSize = 500
	for start := 0; start < len(cells); start += chunkSize {
		end := start + chunkSize
		if end > len(cells) {
			end = len(cells)
		}
		chunk := cells[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO cells (id, sheet_id, row_index, col_index, protected, content, bg_color, color, style, h_align, v_align) VALUES `)
		args := make([]any, 0, len(chunk)*11)
		for i, cell := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 11
			fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d::jsonb,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11)
			style, err := encodeStyle(cell.Style)
			if err != nil {
				return err
			}
			args = append(args, cell.ID, cell.SheetID, cell.Row, cell.Col, cell.Protected, cell.Content, cell.BgColor, cell.Color, style, cell.HAlign, cell.VAlign)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("bulk insert cells: %w", err)
		}
	}
	return nil
}
