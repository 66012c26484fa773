package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"guardian-relay/internal/models"

	"go.uber.org/zap"
)

// PostgresStore 把每张表的行存为 directory_rows 中的 JSONB，row_id 决定插入顺序
type PostgresStore struct {
	db      *sql.DB
	schemas map[string][]string
	logger  *zap.Logger
}

func NewPostgresStore(db *sql.DB, schemas map[string][]string, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		schemas: schemas,
		logger:  logger,
	}
}

// EnsureSchema 创建 directory_rows 表（幂等）
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS directory_rows (
			row_id     BIGSERIAL PRIMARY KEY,
			sheet_name TEXT NOT NULL,
			cells      JSONB NOT NULL DEFAULT '{}'::jsonb
		)
	`)
	if err != nil {
		return unavailable("ensure schema", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_directory_rows_sheet ON directory_rows (sheet_name, row_id)
	`)
	if err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

func (s *PostgresStore) ReadAllRows(ctx context.Context, sheet string) ([]models.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cells
		FROM directory_rows
		WHERE sheet_name = $1
		ORDER BY row_id
	`, sheet)
	if err != nil {
		return nil, unavailable("read rows", err)
	}
	defer rows.Close()

	out := []models.Row{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable("scan row", err)
		}
		row := models.Row{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &row); err != nil {
				return nil, fmt.Errorf("failed to unmarshal row in %s: %w", sheet, err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read rows", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendRow(ctx context.Context, sheet string, row models.Row) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO directory_rows (sheet_name, cells) VALUES ($1, $2)
	`, sheet, cells)
	if err != nil {
		return unavailable("append row", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCell(ctx context.Context, sheet string, rowIndex int, column, value string) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}
	name, _, err := resolveColumn(s.schemas[sheet], column)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE directory_rows
		SET cells = jsonb_set(cells, ARRAY[$3::text], to_jsonb($4::text), true)
		WHERE row_id = (
			SELECT row_id FROM directory_rows
			WHERE sheet_name = $1
			ORDER BY row_id
			OFFSET $2 LIMIT 1
		)
	`, sheet, rowIndex-FirstDataRow, name, value)
	if err != nil {
		return unavailable("update cell", err)
	}
	return expectOneRow(res, sheet, rowIndex)
}

func (s *PostgresStore) DeleteRow(ctx context.Context, sheet string, rowIndex int) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM directory_rows
		WHERE row_id = (
			SELECT row_id FROM directory_rows
			WHERE sheet_name = $1
			ORDER BY row_id
			OFFSET $2 LIMIT 1
		)
	`, sheet, rowIndex-FirstDataRow)
	if err != nil {
		return unavailable("delete row", err)
	}
	return expectOneRow(res, sheet, rowIndex)
}

func expectOneRow(res sql.Result, sheet string, rowIndex int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("row %d in %s: %w", rowIndex, sheet, models.ErrNotFound)
	}
	return nil
}
