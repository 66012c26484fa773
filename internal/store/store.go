package store

import (
	"context"
	"fmt"
	"strings"

	"guardian-relay/internal/models"
)

// FirstDataRow 第 1 行是表头，数据从第 2 行开始
const FirstDataRow = 2

// Store 表格存储适配器（目录的持久化来源）
// 所有方法在后端不可用时返回包装了 models.ErrStoreUnavailable 的错误
type Store interface {
	// ReadAllRows 按插入顺序返回除表头外的所有行（包括空行，保证行号对齐）
	ReadAllRows(ctx context.Context, sheet string) ([]models.Row, error)
	AppendRow(ctx context.Context, sheet string, row models.Row) error
	UpdateCell(ctx context.Context, sheet string, rowIndex int, column, value string) error
	DeleteRow(ctx context.Context, sheet string, rowIndex int) error
}

// DefaultSchemas 目录使用的两张表
func DefaultSchemas() map[string][]string {
	return map[string][]string{
		models.SheetUnits:  models.UnitColumns,
		models.SheetAdmins: models.AdminColumns,
	}
}

// RowIndex 把 ReadAllRows 结果中的位置换算为表格行号
func RowIndex(position int) int {
	return position + FirstDataRow
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, models.ErrStoreUnavailable, err)
}

func checkRowIndex(rowIndex int) error {
	if rowIndex < FirstDataRow {
		return fmt.Errorf("row %d is not a data row: %w", rowIndex, models.ErrNotFound)
	}
	return nil
}

// resolveColumn 在表头中查找列（忽略大小写），返回表头中的原始列名和位置
func resolveColumn(header []string, column string) (string, int, error) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(column)) {
			return h, i, nil
		}
	}
	return "", -1, fmt.Errorf("column %q: %w", column, models.ErrNotFound)
}
