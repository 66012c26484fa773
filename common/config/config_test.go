package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "guardian")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", SSLMode: "disable"}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "guardian", cfg.Database)
	assert.Equal(t, "postgres", cfg.User)
	assert.Equal(t,
		"host=db.internal port=6543 user=postgres password= dbname=guardian sslmode=disable",
		cfg.GetDSN(),
	)
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")

	cfg := RedisConfig{Addr: "localhost:6379"}
	cfg.LoadFromEnv("REDIS")

	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "", cfg.Password)
}

func TestDatabaseConfig_LoadFromEnv_PoolAndInvalidPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("DB_MAX_IDLE", "5")

	cfg := DatabaseConfig{Port: 5432}
	cfg.LoadFromEnv("DB")

	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, 20, cfg.MaxConns)
	assert.Equal(t, 5, cfg.MaxIdle)
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_USERNAME", "relay")
	t.Setenv("MQTT_QOS", "2")

	cfg := MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "guardian-relay", QoS: 1}
	cfg.LoadFromEnv("MQTT")

	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, "guardian-relay", cfg.ClientID)
	assert.Equal(t, "relay", cfg.Username)
	assert.Equal(t, byte(2), cfg.QoS)

	t.Setenv("MQTT_QOS", "7")
	cfg.LoadFromEnv("MQTT")
	assert.Equal(t, byte(2), cfg.QoS)
}

func TestTelegramConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_POLL_TIMEOUT", "45s")

	cfg := TelegramConfig{BaseURL: "https://api.telegram.org", PollTimeout: 30 * time.Second}
	cfg.LoadFromEnv("TELEGRAM")

	assert.Equal(t, "123:abc", cfg.Token)
	assert.Equal(t, "https://api.telegram.org", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.PollTimeout)
}

func TestTelegramConfig_LoadFromEnv_InvalidTimeoutKeepsDefault(t *testing.T) {
	t.Setenv("TELEGRAM_POLL_TIMEOUT", "soon")

	cfg := TelegramConfig{PollTimeout: 30 * time.Second}
	cfg.LoadFromEnv("TELEGRAM")

	assert.Equal(t, 30*time.Second, cfg.PollTimeout)
}
