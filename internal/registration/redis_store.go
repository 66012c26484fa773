package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guardian-relay/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const resolveMaxRetries = 3

// RedisPendingStore 把注册状态保存在 Redis，进程重启后仍然有效
// 键格式：{prefix}pending:{senderID} 与 {prefix}resolution:{senderID}
type RedisPendingStore struct {
	redisClient   *redis.Client
	keyPrefix     string
	resolutionTTL time.Duration // 0 表示不过期
	logger        *zap.Logger
}

func NewRedisPendingStore(redisClient *redis.Client, keyPrefix string, resolutionTTL time.Duration, logger *zap.Logger) *RedisPendingStore {
	return &RedisPendingStore{
		redisClient:   redisClient,
		keyPrefix:     keyPrefix,
		resolutionTTL: resolutionTTL,
		logger:        logger,
	}
}

func (s *RedisPendingStore) pendingKey(senderID string) string {
	return s.keyPrefix + "pending:" + senderID
}

func (s *RedisPendingStore) resolutionKey(senderID string) string {
	return s.keyPrefix + "resolution:" + senderID
}

func (s *RedisPendingStore) Add(ctx context.Context, p models.PendingRegistration) (bool, error) {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to marshal pending registration: %w", err)
	}
	created, err := s.redisClient.SetNX(ctx, s.pendingKey(p.SenderID), jsonData, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add pending registration: %w: %v", models.ErrStoreUnavailable, err)
	}
	return created, nil
}

func (s *RedisPendingStore) Get(ctx context.Context, senderID string) (models.PendingRegistration, error) {
	var p models.PendingRegistration
	if err := s.getJSON(ctx, s.pendingKey(senderID), &p); err != nil {
		return models.PendingRegistration{}, err
	}
	return p, nil
}

// Resolve 使用 WATCH/MULTI 保证删除待审批请求与写入终态在同一事务中完成
func (s *RedisPendingStore) Resolve(ctx context.Context, senderID string, state models.RegistrationState, decidedBy string, at time.Time) (models.Resolution, error) {
	pendingKey := s.pendingKey(senderID)
	var res models.Resolution

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, pendingKey).Result()
		if err == redis.Nil {
			return fmt.Errorf("registration %s: %w", senderID, models.ErrAlreadyProcessed)
		}
		if err != nil {
			return err
		}
		var p models.PendingRegistration
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			return fmt.Errorf("failed to unmarshal pending registration: %w", err)
		}

		res = models.Resolution{
			SenderID:    senderID,
			DisplayName: p.DisplayName,
			State:       state,
			DecidedBy:   decidedBy,
			DecidedAt:   at,
		}
		jsonData, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to marshal resolution: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, pendingKey)
			pipe.Set(ctx, s.resolutionKey(senderID), jsonData, s.resolutionTTL)
			return nil
		})
		return err
	}

	for i := 0; i < resolveMaxRetries; i++ {
		err := s.redisClient.Watch(ctx, txf, pendingKey)
		if err == redis.TxFailedErr {
			s.logger.Debug("Concurrent registration decision, retrying",
				zap.String("sender_id", senderID),
				zap.Int("attempt", i+1),
			)
			continue
		}
		if errors.Is(err, models.ErrAlreadyProcessed) {
			return models.Resolution{}, err
		}
		if err != nil {
			return models.Resolution{}, fmt.Errorf("failed to resolve registration %s: %w: %v", senderID, models.ErrStoreUnavailable, err)
		}
		return res, nil
	}
	// 另一个决定在竞争中胜出
	return models.Resolution{}, fmt.Errorf("registration %s: %w", senderID, models.ErrAlreadyProcessed)
}

func (s *RedisPendingStore) Resolution(ctx context.Context, senderID string) (models.Resolution, error) {
	var res models.Resolution
	if err := s.getJSON(ctx, s.resolutionKey(senderID), &res); err != nil {
		return models.Resolution{}, err
	}
	return res, nil
}

func (s *RedisPendingStore) MarkRegistered(ctx context.Context, senderID string) error {
	res, err := s.Resolution(ctx, senderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if res.State != models.RegistrationApproved {
		return nil
	}
	res.Registered = true

	jsonData, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}
	if err := s.redisClient.Set(ctx, s.resolutionKey(senderID), jsonData, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark registered: %w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisPendingStore) getJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("%s: %w", key, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get %s: %w: %v", key, models.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
