package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH", "refresh-secret")
	t.Setenv("DATABASE_URL", "app:pw@tcp(localhost:3306)/accounts")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, StoreMySQL, cfg.Store)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.False(t, cfg.Production())
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "auth.events", cfg.Events.Queue)
}

func TestLoadMissingSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_REFRESH", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_REFRESH")
}

func TestLoadMemoryStoreNeedsNoDatabase(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE", StoreMemory)
	t.Setenv("NODE_ENV", EnvProduction)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestEventsEnabledByBrokerURL(t *testing.T) {
	setRequired(t)
	t.Setenv("RABBITMQ_URL", "amqp://user:pw@broker:5672/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "amqp://user:pw@broker:5672/", cfg.Events.URL)
}

func TestRateLimitNormalize(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestParseMethods(t *testing.T) {
	m := parseMethods(" get, head ,")
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, m)
}
