package directory

import (
	"time"

	"guardian-relay/internal/models"
)

// Snapshot 目录的不可变快照；只能整体替换，不能原地修改
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time

	units    map[string]models.UnitRecord
	order    []string
	admins   []string
	adminSet map[string]struct{}
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		units:    map[string]models.UnitRecord{},
		adminSet: map[string]struct{}{},
	}
}

// buildSnapshot 由存储行构建快照；重复的 User ID 只保留第一行
func buildSnapshot(units []models.UnitRecord, admins []string) (*Snapshot, []string) {
	s := emptySnapshot()
	var duplicates []string
	for _, u := range units {
		if u.UnitID == "" {
			continue
		}
		if _, exists := s.units[u.UnitID]; exists {
			duplicates = append(duplicates, u.UnitID)
			continue
		}
		s.units[u.UnitID] = u
		s.order = append(s.order, u.UnitID)
	}
	for _, id := range admins {
		if id == "" {
			continue
		}
		if _, exists := s.adminSet[id]; exists {
			continue
		}
		s.adminSet[id] = struct{}{}
		s.admins = append(s.admins, id)
	}
	return s, duplicates
}

func (s *Snapshot) clone() *Snapshot {
	c := &Snapshot{
		Generation: s.Generation,
		LoadedAt:   s.LoadedAt,
		units:      make(map[string]models.UnitRecord, len(s.units)+1),
		order:      append([]string(nil), s.order...),
		admins:     append([]string(nil), s.admins...),
		adminSet:   make(map[string]struct{}, len(s.adminSet)+1),
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k := range s.adminSet {
		c.adminSet[k] = struct{}{}
	}
	return c
}

func (s *Snapshot) withoutUnit(unitID string) *Snapshot {
	c := s.clone()
	delete(c.units, unitID)
	c.order = removeString(c.order, unitID)
	return c
}

func (s *Snapshot) withoutAdmin(id string) *Snapshot {
	c := s.clone()
	delete(c.adminSet, id)
	c.admins = removeString(c.admins, id)
	return c
}

// UnitList 按插入顺序返回所有学校
func (s *Snapshot) UnitList() []models.UnitRecord {
	out := make([]models.UnitRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.units[id])
	}
	return out
}

// AdminList 管理员列表副本
func (s *Snapshot) AdminList() []string {
	return append([]string(nil), s.admins...)
}

func (s *Snapshot) UnitCount() int  { return len(s.units) }
func (s *Snapshot) AdminCount() int { return len(s.admins) }

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
