package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "guardian-relay/common/redis"
	"guardian-relay/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamConfig 入站事件流配置
type StreamConfig struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	Block         time.Duration // 必须为正数，0 会让 XREADGROUP 永久阻塞
}

// StreamConsumer 消费外部网关写入 Redis Streams 的入站消息
// 每条消息的 data 字段是 models.InboundMessage 的 JSON
type StreamConsumer struct {
	config      StreamConfig
	redisClient *redis.Client
	router      *Router
	logger      *zap.Logger
}

func NewStreamConsumer(cfg StreamConfig, redisClient *redis.Client, router *Router, logger *zap.Logger) *StreamConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		router:      router,
		logger:      logger,
	}
}

// Start 启动消费循环，直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", c.config.Stream, err)
	}

	c.logger.Info("Inbound stream consumer started",
		zap.String("stream", c.config.Stream),
		zap.String("consumer_group", c.config.ConsumerGroup),
		zap.String("consumer_name", c.config.ConsumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Inbound stream consumer stopped")
			return nil
		default:
		}

		if _, err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume inbound stream",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// consumeOnce 读取并处理一批消息，返回处理条数
func (c *StreamConsumer) consumeOnce(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Stream,
		c.config.ConsumerGroup,
		c.config.ConsumerName,
		c.config.BatchSize,
		c.config.Block,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream %s: %w", c.config.Stream, err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process inbound message",
				zap.String("stream", msg.Stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		// 处理失败也确认：路由已回复发送者，重放会产生重复告警
		if err := rediscommon.Ack(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack inbound message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return len(messages), nil
}

func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message %s has no data field: %w", msg.ID, models.ErrMalformedInput)
	}

	var inbound models.InboundMessage
	if err := json.Unmarshal([]byte(raw), &inbound); err != nil {
		return fmt.Errorf("failed to unmarshal inbound message: %w", err)
	}
	if inbound.Sender.ID == "" {
		return fmt.Errorf("message %s has no sender: %w", msg.ID, models.ErrMalformedInput)
	}
	if inbound.ReceivedAt.IsZero() {
		inbound.ReceivedAt = time.Now()
	}
	return c.router.Route(ctx, inbound)
}
