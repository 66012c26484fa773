package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"guardian-relay/common/database"
	commonmqtt "guardian-relay/common/mqtt"
	rediscommon "guardian-relay/common/redis"
	"guardian-relay/internal/classifier"
	"guardian-relay/internal/config"
	"guardian-relay/internal/directory"
	"guardian-relay/internal/dispatch"
	"guardian-relay/internal/messenger"
	"guardian-relay/internal/models"
	mqttmsg "guardian-relay/internal/mqtt"
	"guardian-relay/internal/registration"
	"guardian-relay/internal/router"
	"guardian-relay/internal/store"
	"guardian-relay/internal/telegram"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GuardianService 中继服务（整合各层）
type GuardianService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *commonmqtt.Client
	logger      *zap.Logger

	// 各层组件
	store    store.Store
	cache    *directory.Cache
	engine   *dispatch.Engine
	workflow *registration.Workflow
	router   *router.Router
	poller   *telegram.Poller
	consumer *router.StreamConsumer
	server   *Server
}

// NewGuardianService 按配置连接外部依赖并组装组件
func NewGuardianService(cfg *config.Config, logger *zap.Logger) (*GuardianService, error) {
	s := &GuardianService{config: cfg, logger: logger}
	ctx := context.Background()

	// 1. 连接 Redis（按需）
	if cfg.NeedsRedis() {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	// 2. 创建存储层
	st, err := s.buildStore(ctx)
	if err != nil {
		s.Stop()
		return nil, err
	}
	s.store = st

	// 3. 目录缓存
	var mirror directory.SnapshotMirror
	if cfg.Directory.MirrorKey != "" {
		mirror = directory.NewRedisMirror(s.redisClient, cfg.Directory.MirrorKey, cfg.Directory.MirrorTTL, logger)
	}
	s.cache = directory.NewCache(st, mirror, cfg.Directory.RefreshInterval, logger)

	// 4. 出站通道
	m, tg, err := s.buildMessenger()
	if err != nil {
		s.Stop()
		return nil, err
	}

	// 5. 分发、注册与路由
	s.engine = dispatch.NewEngine(s.cache, m, dispatch.Config{
		SendTimeout: cfg.Dispatch.SendTimeout,
		MaxParallel: cfg.Dispatch.MaxParallel,
		AlertAudio:  models.Audio{Name: "alerta", Path: cfg.Dispatch.AlertAudioPath},
		TestAudio:   models.Audio{Name: "teste", Path: cfg.Dispatch.TestAudioPath},
	}, logger)

	var pending registration.PendingStore = registration.NewMemoryPendingStore()
	if cfg.Registration.UseRedis {
		pending = registration.NewRedisPendingStore(s.redisClient, cfg.Registration.KeyPrefix, cfg.Registration.ResolutionTTL, logger)
	}
	s.workflow = registration.NewWorkflow(s.cache, pending, m, logger)
	s.router = router.NewRouter(s.cache, classifier.Default(), s.engine, s.workflow, m, logger)

	// 6. 入站来源
	if cfg.Inbound.TelegramPolling && tg != nil {
		s.poller = telegram.NewPoller(tg, s.router, logger)
	}
	if cfg.Inbound.Stream != "" {
		s.consumer = router.NewStreamConsumer(router.StreamConfig{
			Stream:        cfg.Inbound.Stream,
			ConsumerGroup: cfg.Inbound.ConsumerGroup,
			ConsumerName:  cfg.Inbound.ConsumerName,
		}, s.redisClient, s.router, logger)
	}

	// 7. 健康检查
	if cfg.HTTP.Addr != "" {
		s.server = NewServer(cfg.HTTP.Addr, NewHealthHandler(s.cache), logger)
	}

	return s, nil
}

func (s *GuardianService) buildStore(ctx context.Context) (store.Store, error) {
	schemas := store.DefaultSchemas()
	switch s.config.Store.Backend {
	case config.StorePostgres:
		db, err := database.NewPostgresDB(&s.config.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		pg := store.NewPostgresStore(db, schemas, s.logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return pg, nil
	case config.StoreMemory:
		return store.NewMemoryStore(schemas), nil
	default:
		return store.NewExcelStore(s.config.Store.ExcelPath, schemas, s.logger)
	}
}

// buildMessenger 返回出站通道；使用 Telegram 时同时返回其客户端供轮询使用
func (s *GuardianService) buildMessenger() (messenger.Messenger, *telegram.Client, error) {
	cfg := s.config

	var tg *telegram.Client
	if cfg.Telegram.Token != "" {
		tg = telegram.NewClient(&cfg.Telegram, s.logger)
	}

	var panel messenger.Messenger
	if cfg.NeedsMQTT() {
		client, err := commonmqtt.NewClient(&cfg.MQTT, s.logger)
		if err != nil {
			return nil, nil, err
		}
		s.mqttClient = client
		panel = mqttmsg.NewMessenger(client, cfg.Messenger.TopicPrefix, s.logger)
	}

	switch cfg.Messenger.Kind {
	case config.MessengerMQTT:
		return panel, tg, nil
	case config.MessengerLog:
		return messenger.NewLog(s.logger), tg, nil
	default:
		if panel != nil {
			return messenger.NewTee(tg, panel, s.logger), tg, nil
		}
		return tg, tg, nil
	}
}

// Start 加载目录后启动刷新循环与入站来源，任一组件出错即返回
func (s *GuardianService) Start(ctx context.Context) error {
	s.logger.Info("Starting guardian-relay service",
		zap.String("store", s.config.Store.Backend),
		zap.String("messenger", s.config.Messenger.Kind),
	)

	if err := s.cache.Load(ctx); err != nil {
		s.logger.Error("Initial directory load failed, continuing with available snapshot", zap.Error(err))
	}
	s.bootstrapAdministrators(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.cache.Run(ctx)
	})
	if s.poller != nil {
		g.Go(func() error {
			return s.poller.Start(ctx)
		})
	}
	if s.consumer != nil {
		g.Go(func() error {
			if err := s.consumer.Start(ctx); err != nil {
				return fmt.Errorf("failed to start inbound stream consumer: %w", err)
			}
			return nil
		})
	}
	if s.server != nil {
		g.Go(func() error {
			return s.server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.server.Stop(shutdownCtx)
		})
	}
	return g.Wait()
}

// bootstrapAdministrators 把 ADMIN_USER_IDS 写入管理员表（已存在的跳过）
func (s *GuardianService) bootstrapAdministrators(ctx context.Context) {
	for _, id := range s.config.Directory.BootstrapAdmins {
		added, err := s.cache.AddAdministrator(ctx, id)
		if err != nil {
			s.logger.Error("Failed to bootstrap administrator",
				zap.String("admin_id", id),
				zap.Error(err),
			)
			continue
		}
		if added {
			s.logger.Info("Bootstrapped administrator", zap.String("admin_id", id))
		}
	}
}

// Stop 停止服务
func (s *GuardianService) Stop() error {
	s.logger.Info("Stopping guardian-relay service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis",
				zap.Error(err),
			)
		}
	}

	return nil
}
