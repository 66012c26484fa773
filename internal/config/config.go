package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"guardian-relay/common/config"
)

// 存储后端
const (
	StoreExcel    = "excel"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// 出站通道
const (
	MessengerTelegram = "telegram"
	MessengerMQTT     = "mqtt"
	MessengerLog      = "log"
)

// Config 中继服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Telegram config.TelegramConfig

	Store struct {
		Backend   string // excel | postgres | memory
		ExcelPath string // 默认 "guardiao.xlsx"
	}

	Directory struct {
		RefreshInterval time.Duration // 默认 5m
		MirrorKey       string        // 为空时不使用 Redis 镜像
		MirrorTTL       time.Duration
		BootstrapAdmins []string // ADMIN_USER_IDS，启动时写入管理员表
	}

	Dispatch struct {
		SendTimeout    time.Duration // 默认 5s
		MaxParallel    int           // 默认 8
		AlertAudioPath string        // 默认 "alerta.mp3"
		TestAudioPath  string        // 默认 "teste.mp3"
	}

	Registration struct {
		UseRedis      bool   // 待审批请求保存在 Redis
		KeyPrefix     string // 默认 "guardian:registration:"
		ResolutionTTL time.Duration
	}

	Messenger struct {
		Kind        string // telegram | mqtt | log
		MQTTMirror  bool   // telegram 之外同时发布到 MQTT
		TopicPrefix string // 默认 "guardian/alerts"
	}

	Inbound struct {
		TelegramPolling bool
		Stream          string // 为空时不消费 Redis Streams
		ConsumerGroup   string
		ConsumerName    string
	}

	HTTP struct {
		Addr string // 默认 ":8080"，为空时不启动
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "guardiao"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "guardian-relay"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Telegram.BaseURL = "https://api.telegram.org"
	cfg.Telegram.PollTimeout = 30 * time.Second
	cfg.Telegram.LoadFromEnv("TELEGRAM")

	cfg.Store.Backend = strings.ToLower(getEnv("STORE_BACKEND", StoreExcel))
	cfg.Store.ExcelPath = getEnv("EXCEL_PATH", "guardiao.xlsx")

	var err error
	if cfg.Directory.RefreshInterval, err = getDuration("DIRECTORY_REFRESH_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	cfg.Directory.MirrorKey = getEnv("DIRECTORY_MIRROR_KEY", "")
	if cfg.Directory.MirrorTTL, err = getDuration("DIRECTORY_MIRROR_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	cfg.Directory.BootstrapAdmins = splitList(getEnv("ADMIN_USER_IDS", ""))

	if cfg.Dispatch.SendTimeout, err = getDuration("DISPATCH_SEND_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Dispatch.MaxParallel, err = getInt("DISPATCH_MAX_PARALLEL", 8); err != nil {
		return nil, err
	}
	cfg.Dispatch.AlertAudioPath = getEnv("ALERT_AUDIO_PATH", "alerta.mp3")
	cfg.Dispatch.TestAudioPath = getEnv("TEST_AUDIO_PATH", "teste.mp3")

	cfg.Registration.UseRedis = getBool("REGISTRATION_REDIS", false)
	cfg.Registration.KeyPrefix = getEnv("REGISTRATION_KEY_PREFIX", "guardian:registration:")
	if cfg.Registration.ResolutionTTL, err = getDuration("REGISTRATION_RESOLUTION_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Messenger.Kind = strings.ToLower(getEnv("MESSENGER", MessengerTelegram))
	cfg.Messenger.MQTTMirror = getBool("MQTT_MIRROR_ALERTS", false)
	cfg.Messenger.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "guardian/alerts")

	cfg.Inbound.TelegramPolling = getBool("TELEGRAM_POLLING", cfg.Messenger.Kind == MessengerTelegram)
	cfg.Inbound.Stream = getEnv("INBOUND_STREAM", "")
	cfg.Inbound.ConsumerGroup = getEnv("INBOUND_CONSUMER_GROUP", "guardian-relay")
	cfg.Inbound.ConsumerName = getEnv("INBOUND_CONSUMER_NAME", hostname())

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围与组合
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreExcel, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.Store.Backend)
	}
	switch c.Messenger.Kind {
	case MessengerTelegram, MessengerMQTT, MessengerLog:
	default:
		return fmt.Errorf("invalid MESSENGER %q", c.Messenger.Kind)
	}
	if (c.Messenger.Kind == MessengerTelegram || c.Inbound.TelegramPolling) && c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required for the telegram messenger")
	}
	if c.Dispatch.MaxParallel <= 0 {
		return fmt.Errorf("DISPATCH_MAX_PARALLEL must be positive")
	}
	if c.Dispatch.SendTimeout <= 0 {
		return fmt.Errorf("DISPATCH_SEND_TIMEOUT must be positive")
	}
	return nil
}

// NeedsRedis 是否有组件依赖 Redis
func (c *Config) NeedsRedis() bool {
	return c.Registration.UseRedis || c.Directory.MirrorKey != "" || c.Inbound.Stream != ""
}

// NeedsMQTT 是否有组件依赖 MQTT
func (c *Config) NeedsMQTT() bool {
	return c.Messenger.Kind == MessengerMQTT || c.Messenger.MQTTMirror
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// splitList 解析逗号分隔的 ID 列表
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "guardian-relay"
}
