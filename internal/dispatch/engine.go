package dispatch

import (
	"context"
	"fmt"
	"time"

	"guardian-relay/internal/messenger"
	"guardian-relay/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSendTimeout = 5 * time.Second
	DefaultMaxParallel = 8
)

// Config 分发配置
type Config struct {
	SendTimeout time.Duration
	MaxParallel int
	AlertAudio  models.Audio // 除 TEST 外所有类别使用
	TestAudio   models.Audio // TEST 类别专用
}

// AdminSource 提供当前管理员列表（目录缓存实现）
type AdminSource interface {
	Administrators() []string
}

// Engine 把告警独立地发送给每一位管理员
type Engine struct {
	admins    AdminSource
	messenger messenger.Messenger
	config    Config
	logger    *zap.Logger
}

func NewEngine(admins AdminSource, m messenger.Messenger, cfg Config, logger *zap.Logger) *Engine {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Engine{
		admins:    admins,
		messenger: m,
		config:    cfg,
		logger:    logger,
	}
}

// AudioFor 类别对应的提示音
func (e *Engine) AudioFor(category models.EmergencyCategory) models.Audio {
	if category == models.CategoryTest {
		return e.config.TestAudio
	}
	return e.config.AlertAudio
}

// DispatchAlert 向快照中的每位管理员发送告警文本，文本成功后再发送提示音
// 单个收件人的失败只记录在报告中，不影响其他收件人，也不会让整个调用失败
func (e *Engine) DispatchAlert(ctx context.Context, unit models.UnitRecord, category models.EmergencyCategory, rawDetails string, sender models.Sender) *Report {
	report := &Report{
		DispatchID: uuid.NewString(),
		UnitID:     unit.UnitID,
		Category:   category,
		StartedAt:  time.Now(),
		InProgress: true,
	}
	defer func() {
		report.InProgress = false
		report.FinishedAt = time.Now()
	}()

	// 只读取一次，刷新与分发并发时收件人列表保持一致
	admins := e.admins.Administrators()
	report.Deliveries = make([]Delivery, len(admins))
	if len(admins) == 0 {
		e.logger.Warn("No administrators to notify",
			zap.String("dispatch_id", report.DispatchID),
			zap.String("unit_id", unit.UnitID),
		)
		return report
	}

	text := FormatAlert(unit, category, rawDetails, sender)
	audio := e.AudioFor(category)

	var g errgroup.Group
	g.SetLimit(e.config.MaxParallel)
	for i, adminID := range admins {
		i, adminID := i, adminID
		g.Go(func() error {
			report.Deliveries[i] = e.deliver(ctx, adminID, text, audio, category)
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("Emergency alert dispatched",
		zap.String("dispatch_id", report.DispatchID),
		zap.String("unit_id", unit.UnitID),
		zap.String("category", string(category)),
		zap.Int("recipients", len(admins)),
		zap.Int("failed", len(report.Failures())),
	)
	return report
}

func (e *Engine) deliver(ctx context.Context, adminID, text string, audio models.Audio, category models.EmergencyCategory) Delivery {
	d := Delivery{Recipient: adminID}

	err := callWithTimeout(ctx, e.config.SendTimeout, func(ctx context.Context) error {
		return e.messenger.SendText(ctx, adminID, text)
	})
	if err != nil {
		d.Err = fmt.Errorf("send text to %s: %w: %v", adminID, models.ErrDeliveryFailed, err)
		e.logger.Error("Failed to deliver alert",
			zap.String("admin_id", adminID),
			zap.Error(err),
		)
		return d
	}
	d.TextSent = true

	if audio.Path == "" && audio.FileID == "" {
		return d
	}
	err = callWithTimeout(ctx, e.config.SendTimeout, func(ctx context.Context) error {
		return e.messenger.SendAudio(ctx, adminID, audio, category.Label())
	})
	if err != nil {
		d.AudioErr = fmt.Errorf("send audio to %s: %w: %v", adminID, models.ErrDeliveryFailed, err)
		e.logger.Warn("Failed to deliver alert audio",
			zap.String("admin_id", adminID),
			zap.Error(err),
		)
		return d
	}
	d.AudioSent = true
	return d
}

// callWithTimeout 限制单次发送的时长；即使实现忽略 ctx 也会在超时后返回
func callWithTimeout(parent context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
