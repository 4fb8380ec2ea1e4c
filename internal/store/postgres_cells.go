package store

import (
	"context"
	"fmt"
)

const cellColumns = `id, sheet_id, row_index, col_index, protected, content,
	bg_color, color, style, h_align, v_align, created_at, updated_at`

func scanCell(row interface{ Scan(...any) error }) (Cell, error) {
	var cell Cell
	var style []byte
	err := row.Scan(
		&cell.ID,
		&cell.SheetID,
		&cell.Row,
		&cell.Col,
		&cell.Protected,
		&cell.Content,
		&cell.BgColor,
		&cell.Color,
		&style,
		&cell.HAlign,
		&cell.VAlign,
		&cell.CreatedAt,
		&cell.UpdatedAt,
	)
	if err != nil {
		return Cell{}, err
	}
	if cell.Style, err = decodeStyle(style); err != nil {
		return Cell{}, err
	}
	return cell, nil
}

func (s *PostgresStore) ListCells(ctx context.Context, sheetID string) ([]Cell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cellColumns+` FROM cells
		WHERE sheet_id=$1
		ORDER BY row_index ASC, col_index ASC
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	defer rows.Close()

	items := make([]Cell, 0)
	for rows.Next() {
		cell, err := scanCell(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		items = append(items, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCell(ctx context.Context, cellID string) (Cell, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cellColumns+` FROM cells WHERE id=$1`, cellID)
	return scanCell(row)
}

func (s *PostgresStore) GetCellAt(ctx context.Context, sheetID string, rowIdx, colIdx int) (Cell, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cellColumns+` FROM cells WHERE sheet_id=$1 AND row_index=$2 AND col_index=$3
	`, sheetID, rowIdx, colIdx)
	return scanCell(row)
}

func (s *PostgresStore) UpdateCellContent(ctx context.Context, cellID string, content *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cells SET content=$2, updated_at=NOW() WHERE id=$1
	`, cellID, content)
	if err != nil {
		return fmt.Errorf("update cell content: %w", err)
	}
	return nil
}

// ApplyContentEditWithDerived writes the edited cell and its recomputed
// derived siblings in one transaction so the row never shows a half-applied
// cascade.
func (s *PostgresStore) ApplyContentEditWithDerived(ctx context.Context, sheetID, cellID string, content *string, rowIdx int, derived []CellWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin content edit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE cells SET content=$2, updated_at=NOW() WHERE id=$1
	`, cellID, content); err != nil {
		return fmt.Errorf("update cell content: %w", err)
	}
	for _, write := range derived {
		if _, err := tx.ExecContext(ctx, `
			UPDATE cells SET content=$4, updated_at=NOW()
			WHERE sheet_id=$1 AND row_index=$2 AND col_index=$3
		`, sheetID, rowIdx, write.Col, write.Content); err != nil {
			return fmt.Errorf("update derived cell (%d,%d): %w", rowIdx, write.Col, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit content edit: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCellStyle(ctx context.Context, cellID string, style map[string]string) error {
	raw, err := encodeStyle(style)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE cells SET style=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, cellID, raw); err != nil {
		return fmt.Errorf("update cell style: %w", err)
	}
	return nil
}

// UpdateCellStyleAndRowHeight applies a style merge together with the row
// growth a larger font forces, atomically.
func (s *PostgresStore) UpdateCellStyleAndRowHeight(ctx context.Context, cellID string, style map[string]string, sheetID string, heights map[int]int) error {
	styleRaw, err := encodeStyle(style)
	if err != nil {
		return err
	}
	heightsRaw, err := encodeIntMap(heights)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin style edit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE cells SET style=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, cellID, styleRaw); err != nil {
		return fmt.Errorf("update cell style: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sheets SET row_heights=$2::jsonb, updated_at=NOW() WHERE id=$1
	`, sheetID, heightsRaw); err != nil {
		return fmt.Errorf("update row heights: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit style edit: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCellBgColor(ctx context.Context, cellID, bgColor string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cells SET bg_color=$2, updated_at=NOW() WHERE id=$1
	`, cellID, bgColor)
	if err != nil {
		return fmt.Errorf("update cell bg color: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCellColor(ctx context.Context, cellID, color string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cells SET color=$2, updated_at=NOW() WHERE id=$1
	`, cellID, color)
	if err != nil {
		return fmt.Errorf("update cell color: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCellHAlign(ctx context.Context, cellID, align string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cells SET h_align=$2, updated_at=NOW() WHERE id=$1
	`, cellID, align)
	if err != nil {
		return fmt.Errorf("update cell h align: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCellVAlign(ctx context.Context, cellID, align string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cells SET v_align=$2, updated_at=NOW() WHERE id=$1
	`, cellID, align)
	if err != nil {
		return fmt.Errorf("update cell v align: %w", err)
	}
	return nil
}
