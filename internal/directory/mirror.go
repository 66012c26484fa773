package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guardian-relay/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SnapshotMirror 保存最近一次成功加载的目录，供存储不可用时冷启动使用
type SnapshotMirror interface {
	Save(ctx context.Context, units []models.UnitRecord, admins []string) error
	Load(ctx context.Context) ([]models.UnitRecord, []string, error)
}

type mirroredSnapshot struct {
	Units   []models.UnitRecord `json:"units"`
	Admins  []string            `json:"admins"`
	SavedAt int64               `json:"saved_at"`
}

// RedisMirror 把目录快照以 JSON 形式写入 Redis
type RedisMirror struct {
	redisClient *redis.Client
	key         string
	ttl         time.Duration
	logger      *zap.Logger
}

func NewRedisMirror(redisClient *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisMirror {
	return &RedisMirror{
		redisClient: redisClient,
		key:         key,
		ttl:         ttl,
		logger:      logger,
	}
}

func (m *RedisMirror) Save(ctx context.Context, units []models.UnitRecord, admins []string) error {
	jsonData, err := json.Marshal(mirroredSnapshot{
		Units:   units,
		Admins:  admins,
		SavedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := m.redisClient.Set(ctx, m.key, jsonData, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot mirror: %w", err)
	}

	m.logger.Debug("Updated directory mirror",
		zap.String("key", m.key),
		zap.Int("unit_count", len(units)),
		zap.Int("admin_count", len(admins)),
	)
	return nil
}

func (m *RedisMirror) Load(ctx context.Context) ([]models.UnitRecord, []string, error) {
	val, err := m.redisClient.Get(ctx, m.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil, fmt.Errorf("snapshot mirror %s: %w", m.key, models.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to get snapshot mirror: %w", err)
	}

	var snap mirroredSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal snapshot mirror: %w", err)
	}
	return snap.Units, snap.Admins, nil
}
