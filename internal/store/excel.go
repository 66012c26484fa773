package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"guardian-relay/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExcelStore 基于本地 .xlsx 工作簿的表格存储，每张表对应一个 worksheet
// 每次操作都重新打开文件，以便读取到外部编辑后的内容
type ExcelStore struct {
	mu      sync.Mutex
	path    string
	schemas map[string][]string
	logger  *zap.Logger
}

// NewExcelStore 创建工作簿存储；文件或表不存在时按 schema 创建表头
func NewExcelStore(path string, schemas map[string][]string, logger *zap.Logger) (*ExcelStore, error) {
	s := &ExcelStore{path: path, schemas: schemas, logger: logger}
	if err := s.ensureWorkbook(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ExcelStore) ensureWorkbook() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f *excelize.File
	created := false
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		created = true
		s.logger.Info("Creating directory workbook", zap.String("path", s.path))
	} else {
		f, err = excelize.OpenFile(s.path)
		if err != nil {
			return unavailable("open workbook", err)
		}
	}
	defer f.Close()

	for sheet, header := range s.schemas {
		idx, err := f.GetSheetIndex(sheet)
		if err != nil {
			return unavailable("inspect workbook", err)
		}
		if idx >= 0 {
			continue
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		values := make([]interface{}, len(header))
		for i, h := range header {
			values[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", sheet, err)
		}
	}
	if _, ok := s.schemas["Sheet1"]; created && !ok {
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
			_ = f.DeleteSheet("Sheet1")
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return unavailable("save workbook", err)
	}
	return nil
}

func (s *ExcelStore) ReadAllRows(_ context.Context, sheet string) ([]models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, unavailable("open workbook", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, unavailable("read rows", err)
	}
	if len(rows) == 0 {
		return []models.Row{}, nil
	}

	header := rows[0]
	out := make([]models.Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(models.Row, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *ExcelStore) AppendRow(_ context.Context, sheet string, row models.Row) error {
	return s.modify("append row", func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		header := s.schemas[sheet]
		if len(rows) > 0 {
			header = rows[0]
		}
		values := make([]interface{}, len(header))
		for i, h := range header {
			values[i] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	})
}

func (s *ExcelStore) UpdateCell(_ context.Context, sheet string, rowIndex int, column, value string) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}
	return s.modify("update cell", func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		if len(rows) == 0 || rowIndex > len(rows) {
			return fmt.Errorf("row %d in %s: %w", rowIndex, sheet, models.ErrNotFound)
		}
		_, col, err := resolveColumn(rows[0], column)
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(col+1, rowIndex)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, value)
	})
}

func (s *ExcelStore) DeleteRow(_ context.Context, sheet string, rowIndex int) error {
	if err := checkRowIndex(rowIndex); err != nil {
		return err
	}
	return s.modify("delete row", func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		if rowIndex > len(rows) {
			return fmt.Errorf("row %d in %s: %w", rowIndex, sheet, models.ErrNotFound)
		}
		return f.RemoveRow(sheet, rowIndex)
	})
}

// modify 打开工作簿、执行修改并保存；ErrNotFound 原样返回且不保存
func (s *ExcelStore) modify(op string, fn func(f *excelize.File) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return unavailable(op, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return unavailable(op, err)
	}
	if err := f.Save(); err != nil {
		return unavailable(op, err)
	}

	s.logger.Debug("Directory workbook updated",
		zap.String("op", op),
		zap.String("path", s.path),
	)
	return nil
}
