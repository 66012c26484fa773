package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"guardian-relay/internal/classifier"
	"guardian-relay/internal/models"
	"guardian-relay/internal/store"

	"go.uber.org/zap"
)

// DefaultRefreshInterval 目录定时刷新间隔
const DefaultRefreshInterval = 5 * time.Minute

// Cache 学校与管理员目录的内存投影
// 读操作无锁（原子指针读取快照）；所有写操作（刷新与增量修改）串行化在 mu 上
type Cache struct {
	store    store.Store
	mirror   SnapshotMirror
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	gen     uint64
	current atomic.Pointer[Snapshot]
}

// NewCache 创建目录缓存；mirror 可以为 nil
func NewCache(st store.Store, mirror SnapshotMirror, interval time.Duration, logger *zap.Logger) *Cache {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	c := &Cache{
		store:    st,
		mirror:   mirror,
		interval: interval,
		logger:   logger,
	}
	c.current.Store(emptySnapshot())
	return c
}

// Snapshot 当前快照（只读）
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Refresh 从存储重新加载全部学校与管理员，成功后整体替换快照
// 任一读取失败时保留上一份快照并返回错误
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	unitRows, err := c.store.ReadAllRows(ctx, models.SheetUnits)
	if err != nil {
		return fmt.Errorf("failed to read units: %w", err)
	}
	adminRows, err := c.store.ReadAllRows(ctx, models.SheetAdmins)
	if err != nil {
		return fmt.Errorf("failed to read administrators: %w", err)
	}

	units := make([]models.UnitRecord, 0, len(unitRows))
	for _, r := range unitRows {
		units = append(units, trimUnit(models.UnitFromRow(r)))
	}
	admins := make([]string, 0, len(adminRows))
	for _, r := range adminRows {
		admins = append(admins, strings.TrimSpace(r[models.ColumnUserID]))
	}

	snap := c.install(units, admins)

	if c.mirror != nil {
		if err := c.mirror.Save(ctx, snap.UnitList(), snap.AdminList()); err != nil {
			c.logger.Warn("Failed to update directory mirror", zap.Error(err))
		}
	}

	c.logger.Info("Directory refreshed",
		zap.Uint64("generation", snap.Generation),
		zap.Int("unit_count", snap.UnitCount()),
		zap.Int("admin_count", snap.AdminCount()),
	)
	if snap.AdminCount() == 0 {
		c.logger.Warn("Directory has no administrators, alerts will have no recipients")
	}
	return nil
}

// Load 启动时的首次加载；存储不可用时尝试从镜像恢复，否则保持空目录
// 返回的错误只用于记录，不应导致进程退出
func (c *Cache) Load(ctx context.Context) error {
	err := c.Refresh(ctx)
	if err == nil {
		return nil
	}
	if c.mirror == nil {
		return err
	}

	units, admins, mirrorErr := c.mirror.Load(ctx)
	if mirrorErr != nil {
		c.logger.Warn("Directory mirror unavailable", zap.Error(mirrorErr))
		return err
	}

	c.mu.Lock()
	snap := c.install(units, admins)
	c.mu.Unlock()

	c.logger.Warn("Directory store unavailable, loaded last known snapshot from mirror",
		zap.Error(err),
		zap.Int("unit_count", snap.UnitCount()),
		zap.Int("admin_count", snap.AdminCount()),
	)
	return err
}

// Run 定时刷新，直到 ctx 取消
func (c *Cache) Run(ctx context.Context) error {
	c.logger.Info("Directory refresh loop started",
		zap.Duration("interval", c.interval),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Directory refresh loop stopped")
			return nil
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("Failed to refresh directory, keeping last known snapshot",
					zap.Error(err),
				)
			}
		}
	}
}

// LookupUnit 按 User ID 查找学校
func (c *Cache) LookupUnit(unitID string) (models.UnitRecord, error) {
	u, ok := c.Snapshot().units[strings.TrimSpace(unitID)]
	if !ok {
		return models.UnitRecord{}, fmt.Errorf("unit %s: %w", unitID, models.ErrNotFound)
	}
	return u, nil
}

// IsAdministrator 是否为管理员
func (c *Cache) IsAdministrator(id string) bool {
	_, ok := c.Snapshot().adminSet[strings.TrimSpace(id)]
	return ok
}

// Administrators 当前快照中的管理员列表
func (c *Cache) Administrators() []string {
	return c.Snapshot().AdminList()
}

// Units 当前快照中的全部学校（插入顺序）
func (c *Cache) Units() []models.UnitRecord {
	return c.Snapshot().UnitList()
}

// UpsertUnit 把已写入存储的学校合并进快照，无需等待下一次刷新
func (c *Cache) UpsertUnit(rec models.UnitRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergeUnitLocked(trimUnit(rec))
}

// CreateUnit 检查重复、写入存储并合并进快照；整个过程持有写锁
func (c *Cache) CreateUnit(ctx context.Context, rec models.UnitRecord) error {
	rec = trimUnit(rec)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.Snapshot().units[rec.UnitID]; exists {
		return fmt.Errorf("unit %s: %w", rec.UnitID, models.ErrDuplicateUnit)
	}
	if err := c.store.AppendRow(ctx, models.SheetUnits, rec.ToRow()); err != nil {
		return fmt.Errorf("failed to append unit %s: %w", rec.UnitID, err)
	}
	return c.mergeUnitLocked(rec)
}

func (c *Cache) mergeUnitLocked(rec models.UnitRecord) error {
	if rec.UnitID == "" {
		return fmt.Errorf("unit without identifier: %w", models.ErrMalformedInput)
	}
	cur := c.Snapshot()
	if _, exists := cur.units[rec.UnitID]; exists {
		return fmt.Errorf("unit %s: %w", rec.UnitID, models.ErrDuplicateUnit)
	}
	next := cur.clone()
	next.units[rec.UnitID] = rec
	next.order = append(next.order, rec.UnitID)
	c.swapLocked(next)
	return nil
}

// UpdateUnitField 修改学校的单个字段（列名忽略大小写）；返回规范列名
func (c *Cache) UpdateUnitField(ctx context.Context, unitID, column, value string) (string, error) {
	canonical, ok := CanonicalColumn(column)
	if !ok {
		return "", fmt.Errorf("column %q: %w", column, models.ErrNotFound)
	}
	if canonical == models.ColumnUserID {
		return "", fmt.Errorf("column %q is immutable: %w", column, models.ErrMalformedInput)
	}
	unitID = strings.TrimSpace(unitID)

	c.mu.Lock()
	defer c.mu.Unlock()

	rowIndex, err := c.findRowLocked(ctx, models.SheetUnits, unitID)
	if err != nil {
		return "", err
	}
	if err := c.store.UpdateCell(ctx, models.SheetUnits, rowIndex, canonical, value); err != nil {
		return "", fmt.Errorf("failed to update unit %s: %w", unitID, err)
	}

	cur := c.Snapshot()
	if u, exists := cur.units[unitID]; exists {
		updated, _ := u.WithField(canonical, value)
		next := cur.clone()
		next.units[unitID] = updated
		c.swapLocked(next)
	}
	return canonical, nil
}

// RemoveUnit 从存储删除学校并移出快照
func (c *Cache) RemoveUnit(ctx context.Context, unitID string) error {
	unitID = strings.TrimSpace(unitID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deleteRowsLocked(ctx, models.SheetUnits, unitID); err != nil {
		return fmt.Errorf("failed to delete unit %s: %w", unitID, err)
	}
	c.swapLocked(c.Snapshot().withoutUnit(unitID))
	return nil
}

// AddAdministrator 写入存储并加入快照；已是管理员时返回 false
func (c *Cache) AddAdministrator(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("empty administrator id: %w", models.ErrMalformedInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Snapshot()
	if _, exists := cur.adminSet[id]; exists {
		return false, nil
	}
	if err := c.store.AppendRow(ctx, models.SheetAdmins, models.Row{models.ColumnUserID: id}); err != nil {
		return false, fmt.Errorf("failed to append administrator %s: %w", id, err)
	}
	next := cur.clone()
	next.adminSet[id] = struct{}{}
	next.admins = append(next.admins, id)
	c.swapLocked(next)
	return true, nil
}

// RemoveAdministrator 从存储删除管理员并移出快照
func (c *Cache) RemoveAdministrator(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deleteRowsLocked(ctx, models.SheetAdmins, id); err != nil {
		return fmt.Errorf("failed to delete administrator %s: %w", id, err)
	}
	next := c.Snapshot().withoutAdmin(id)
	c.swapLocked(next)
	if next.AdminCount() == 0 {
		c.logger.Warn("Last administrator removed", zap.String("admin_id", id))
	}
	return nil
}

// findRowLocked 在存储中定位 User ID 所在的行号（存储是唯一事实来源，行号可能已变化）
func (c *Cache) findRowLocked(ctx context.Context, sheet, id string) (int, error) {
	rows, err := c.store.ReadAllRows(ctx, sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	id = strings.TrimSpace(id)
	for pos, r := range rows {
		if strings.TrimSpace(r[models.ColumnUserID]) == id {
			return store.RowIndex(pos), nil
		}
	}
	return 0, fmt.Errorf("%s %s: %w", sheet, id, models.ErrNotFound)
}

// deleteRowsLocked 删除该 ID 的所有行（包括重复行），从后往前删以保持行号有效
func (c *Cache) deleteRowsLocked(ctx context.Context, sheet, id string) error {
	rows, err := c.store.ReadAllRows(ctx, sheet)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	id = strings.TrimSpace(id)
	var matches []int
	for pos, r := range rows {
		if strings.TrimSpace(r[models.ColumnUserID]) == id {
			matches = append(matches, store.RowIndex(pos))
		}
	}
	if len(matches) == 0 {
		return fmt.Errorf("%s %s: %w", sheet, id, models.ErrNotFound)
	}
	for i := len(matches) - 1; i >= 0; i-- {
		if err := c.store.DeleteRow(ctx, sheet, matches[i]); err != nil {
			return err
		}
	}
	if len(matches) > 1 {
		c.logger.Warn("Removed duplicate rows",
			zap.String("sheet", sheet),
			zap.String("user_id", id),
			zap.Int("rows", len(matches)),
		)
	}
	return nil
}

func (c *Cache) install(units []models.UnitRecord, admins []string) *Snapshot {
	snap, duplicates := buildSnapshot(units, admins)
	if len(duplicates) > 0 {
		c.logger.Warn("Duplicate unit rows ignored",
			zap.Strings("unit_ids", duplicates),
		)
	}
	snap.LoadedAt = time.Now()
	c.swapLocked(snap)
	return snap
}

func (c *Cache) swapLocked(next *Snapshot) {
	c.gen++
	next.Generation = c.gen
	c.current.Store(next)
}

// CanonicalColumn 把用户输入的列名映射为 Units 表的规范列名（忽略大小写与重音）
func CanonicalColumn(column string) (string, bool) {
	want := classifier.Normalize(strings.TrimSpace(column))
	for _, col := range models.UnitColumns {
		if classifier.Normalize(col) == want {
			return col, true
		}
	}
	return "", false
}

func trimUnit(u models.UnitRecord) models.UnitRecord {
	u.UnitID = strings.TrimSpace(u.UnitID)
	return u
}
