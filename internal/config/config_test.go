package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DB_HOST", "DB_PORT", "DB_NAME", "REDIS_ADDR", "MQTT_BROKER", "TELEGRAM_TOKEN", "TELEGRAM_POLL_TIMEOUT",
	"STORE_BACKEND", "EXCEL_PATH", "DIRECTORY_REFRESH_INTERVAL", "DIRECTORY_MIRROR_KEY", "ADMIN_USER_IDS",
	"DISPATCH_SEND_TIMEOUT", "DISPATCH_MAX_PARALLEL", "REGISTRATION_REDIS", "MESSENGER",
	"MQTT_MIRROR_ALERTS", "TELEGRAM_POLLING", "INBOUND_STREAM", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv 空值等同于未设置
func clearEnv(t *testing.T) {
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "guardiao", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)

	assert.Equal(t, StoreExcel, cfg.Store.Backend)
	assert.Equal(t, "guardiao.xlsx", cfg.Store.ExcelPath)
	assert.Equal(t, 5*time.Minute, cfg.Directory.RefreshInterval)
	assert.Empty(t, cfg.Directory.BootstrapAdmins)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.SendTimeout)
	assert.Equal(t, 8, cfg.Dispatch.MaxParallel)
	assert.Equal(t, "alerta.mp3", cfg.Dispatch.AlertAudioPath)
	assert.Equal(t, "teste.mp3", cfg.Dispatch.TestAudioPath)
	assert.Equal(t, MessengerTelegram, cfg.Messenger.Kind)
	assert.True(t, cfg.Inbound.TelegramPolling)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.False(t, cfg.NeedsRedis())
	assert.False(t, cfg.NeedsMQTT())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("MESSENGER", "mqtt")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("ADMIN_USER_IDS", " 900, 901 ,,")
	t.Setenv("DISPATCH_SEND_TIMEOUT", "2s")
	t.Setenv("DISPATCH_MAX_PARALLEL", "3")
	t.Setenv("REGISTRATION_REDIS", "true")
	t.Setenv("INBOUND_STREAM", "guardian:inbound")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, MessengerMQTT, cfg.Messenger.Kind)
	assert.False(t, cfg.Inbound.TelegramPolling)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, []string{"900", "901"}, cfg.Directory.BootstrapAdmins)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.SendTimeout)
	assert.Equal(t, 3, cfg.Dispatch.MaxParallel)
	assert.True(t, cfg.NeedsRedis())
	assert.True(t, cfg.NeedsMQTT())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"STORE_BACKEND": "csv", "MESSENGER": "log"}},
		{"unknown messenger", map[string]string{"MESSENGER": "sms"}},
		{"telegram without token", map[string]string{"MESSENGER": "telegram"}},
		{"bad duration", map[string]string{"MESSENGER": "log", "DISPATCH_SEND_TIMEOUT": "soon"}},
		{"bad parallelism", map[string]string{"MESSENGER": "log", "DISPATCH_MAX_PARALLEL": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
