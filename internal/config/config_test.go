package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "8081", cfg.WSPort)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.HandshakeTimeout)
	assert.Equal(t, 256, cfg.WebSocket.SendQueueSize)
	assert.Equal(t, 10.0, cfg.Recommendation.OfferingMatch)
	assert.Equal(t, 8.0, cfg.Recommendation.SeekingMatch)
	assert.Equal(t, 3.0, cfg.Recommendation.CategoryMatch)
	assert.Equal(t, 30*24*time.Hour, cfg.Recommendation.TrendingWindow)
	assert.Empty(t, cfg.RedisConfig.Addr)
}

func TestLoadConfig_BuildsDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PGHOST", "db")
	t.Setenv("PGUSER", "u")
	t.Setenv("PGPASSWORD", "p")
	t.Setenv("PGDATABASE", "swap")
	t.Setenv("PGPORT", "5432")
	t.Setenv("PGSSLMODE", "disable")
	// t.Setenv восстановит исходное значение после теста
	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/swap?sslmode=disable", cfg.DatabaseURL)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("WS_HANDSHAKE_TIMEOUT", "3s")
	t.Setenv("RECOMMEND_WEIGHT_OFFERING", "12.5")
	t.Setenv("TRENDING_WINDOW_DAYS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.WebSocket.HandshakeTimeout)
	assert.Equal(t, 12.5, cfg.Recommendation.OfferingMatch)
	assert.Equal(t, 7*24*time.Hour, cfg.Recommendation.TrendingWindow)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("WS_SEND_QUEUE", "many")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "WS_SEND_QUEUE")
}

func TestLoadConfig_RejectsNonPositiveLimiter(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"zero rate", "WS_COMMANDS_PER_SECOND", "0"},
		{"negative rate", "WS_COMMANDS_PER_SECOND", "-1.5"},
		{"zero burst", "WS_COMMAND_BURST", "0"},
		{"negative burst", "WS_COMMAND_BURST", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
