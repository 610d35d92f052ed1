package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ARK_DB_DSN", "")
	t.Setenv("ARK_MAX_DAILY_WORK", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.DB.DSN)
	assert.Equal(t, 8*time.Hour, cfg.Dispatch.MaxDailyWork)
	assert.Equal(t, 5, cfg.Dispatch.TickSeconds)
	assert.Equal(t, 8, cfg.Notify.Shards)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ARK_HTTP_ADDR", ":9090")
	t.Setenv("ARK_MAX_DAILY_WORK", "10h30m")
	t.Setenv("ARK_NOTIFY_RETRIES", "5")
	t.Setenv("ARK_TIMEZONE", "Europe/Belgrade")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Hour+30*time.Minute, cfg.Dispatch.MaxDailyWork)
	assert.Equal(t, 5, cfg.Notify.Retries)
	assert.Equal(t, "Europe/Belgrade", cfg.Location.String())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad timezone":      {"ARK_TIMEZONE", "Mars/Olympus"},
		"bad duration":      {"ARK_MAX_DAILY_WORK", "forever"},
		"negative work":     {"ARK_MAX_DAILY_WORK", "-1h"},
		"zero notify shard": {"ARK_NOTIFY_SHARDS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
