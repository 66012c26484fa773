package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"guardian-relay/internal/models"
)

// MemoryStore 内存表格存储（用于测试与无外部存储时的联调）
type MemoryStore struct {
	mu          sync.RWMutex
	schemas     map[string][]string
	sheets      map[string][]models.Row
	unavailable bool
}

func NewMemoryStore(schemas map[string][]string) *MemoryStore {
	return &MemoryStore{
		schemas: schemas,
		sheets:  map[string][]models.Row{},
	}
}

// SetUnavailable 模拟后端故障
func (s *MemoryStore) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

func (s *MemoryStore) ReadAllRows(_ context.Context, sheet string) ([]models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check("read rows"); err != nil {
		return nil, err
	}

	rows := s.sheets[sheet]
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, copyRow(r))
	}
	return out, nil
}

func (s *MemoryStore) AppendRow(_ context.Context, sheet string, row models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("append row"); err != nil {
		return err
	}
	s.sheets[sheet] = append(s.sheets[sheet], copyRow(row))
	return nil
}

func (s *MemoryStore) UpdateCell(_ context.Context, sheet string, rowIndex int, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update cell"); err != nil {
		return err
	}
	pos, err := s.position(sheet, rowIndex)
	if err != nil {
		return err
	}
	name, _, err := resolveColumn(s.schemas[sheet], column)
	if err != nil {
		return err
	}
	s.sheets[sheet][pos][name] = value
	return nil
}

func (s *MemoryStore) DeleteRow(_ context.Context, sheet string, rowIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete row"); err != nil {
		return err
	}
	pos, err := s.position(sheet, rowIndex)
	if err != nil {
		return err
	}
	rows := s.sheets[sheet]
	s.sheets[sheet] = append(rows[:pos:pos], rows[pos+1:]...)
	return nil
}

func (s *MemoryStore) check(op string) error {
	if s.unavailable {
		return unavailable(op, errors.New("memory store marked unavailable"))
	}
	return nil
}

func (s *MemoryStore) position(sheet string, rowIndex int) (int, error) {
	if err := checkRowIndex(rowIndex); err != nil {
		return 0, err
	}
	pos := rowIndex - FirstDataRow
	if pos >= len(s.sheets[sheet]) {
		return 0, fmt.Errorf("row %d in %s: %w", rowIndex, sheet, models.ErrNotFound)
	}
	return pos, nil
}

func copyRow(r models.Row) models.Row {
	out := make(models.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
