package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// TelegramConfig Telegram Bot API 配置
type TelegramConfig struct {
	Token       string
	BaseURL     string
	PollTimeout time.Duration
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从 {prefix}_HOST、_PORT、_USER、_PASSWORD、_NAME、_SSLMODE、_MAX_CONNS、_MAX_IDLE 覆盖默认值
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	envString(&c.Host, prefix+"_HOST")
	envInt(&c.Port, prefix+"_PORT")
	envString(&c.User, prefix+"_USER")
	envString(&c.Password, prefix+"_PASSWORD")
	envString(&c.Database, prefix+"_NAME")
	envString(&c.SSLMode, prefix+"_SSLMODE")
	envInt(&c.MaxConns, prefix+"_MAX_CONNS")
	envInt(&c.MaxIdle, prefix+"_MAX_IDLE")
}

func (c *RedisConfig) LoadFromEnv(prefix string) {
	envString(&c.Addr, prefix+"_ADDR")
	envString(&c.Password, prefix+"_PASSWORD")
	envInt(&c.DB, prefix+"_DB")
}

// LoadFromEnv QoS 只接受 0、1、2，其他值保留默认
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	envString(&c.Broker, prefix+"_BROKER")
	envString(&c.ClientID, prefix+"_CLIENT_ID")
	envString(&c.Username, prefix+"_USERNAME")
	envString(&c.Password, prefix+"_PASSWORD")
	qos := -1
	envInt(&qos, prefix+"_QOS")
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// LoadFromEnv 从环境变量加载 Telegram 配置
func (c *TelegramConfig) LoadFromEnv(prefix string) {
	envString(&c.Token, prefix+"_TOKEN")
	envString(&c.BaseURL, prefix+"_BASE_URL")
	if timeout := os.Getenv(prefix + "_POLL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.PollTimeout = d
		}
	}
}

// envString 环境变量非空时覆盖 dst
func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt 环境变量是合法整数时覆盖 dst
func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}
