// README: Config loader with env defaults for HTTP, DB, Redis, maps, dispatch and notification settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type DispatchConfig struct {
	// MaxDailyWork is the per-driver daily working-time ceiling.
	MaxDailyWork time.Duration
	// TickSeconds is how often due scheduled rides are dispatched.
	TickSeconds int
	// ScheduledBatch bounds how many due rides one tick picks up.
	ScheduledBatch int
}

type NotifyConfig struct {
	Shards  int
	Buffer  int
	Retries int
	Backoff time.Duration
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN     string
		Migrate bool
	}
	Redis struct {
		Addr     string
		Password string
	}
	Maps struct {
		APIKey string
	}
	Log struct {
		Level string
	}
	Location *time.Location
	Dispatch DispatchConfig
	Notify   NotifyConfig
}

// Load reads the optional .env file, then the process environment.
// An empty DSN or Redis address selects the in-memory implementations.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("ARK_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("ARK_DB_DSN", "")
	cfg.DB.Migrate = cast.ToBool(envOrDefault("ARK_MIGRATE", "true"))
	cfg.Redis.Addr = envOrDefault("ARK_REDIS_ADDR", "")
	cfg.Redis.Password = envOrDefault("ARK_REDIS_PASSWORD", "")
	cfg.Maps.APIKey = envOrDefault("ARK_MAPS_API_KEY", "")
	cfg.Log.Level = envOrDefault("ARK_LOG_LEVEL", "info")

	tz := envOrDefault("ARK_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("ARK_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	cfg.Dispatch.MaxDailyWork, err = cast.ToDurationE(envOrDefault("ARK_MAX_DAILY_WORK", "8h"))
	if err != nil {
		return Config{}, fmt.Errorf("ARK_MAX_DAILY_WORK: %w", err)
	}
	cfg.Dispatch.TickSeconds = cast.ToInt(envOrDefault("ARK_DISPATCH_TICK", "5"))
	cfg.Dispatch.ScheduledBatch = cast.ToInt(envOrDefault("ARK_DISPATCH_BATCH", "50"))

	cfg.Notify.Shards = cast.ToInt(envOrDefault("ARK_NOTIFY_SHARDS", "8"))
	cfg.Notify.Buffer = cast.ToInt(envOrDefault("ARK_NOTIFY_BUFFER", "256"))
	cfg.Notify.Retries = cast.ToInt(envOrDefault("ARK_NOTIFY_RETRIES", "3"))
	cfg.Notify.Backoff, err = cast.ToDurationE(envOrDefault("ARK_NOTIFY_BACKOFF", "200ms"))
	if err != nil {
		return Config{}, fmt.Errorf("ARK_NOTIFY_BACKOFF: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Dispatch.MaxDailyWork <= 0 {
		return fmt.Errorf("ARK_MAX_DAILY_WORK must be positive, got %s", c.Dispatch.MaxDailyWork)
	}
	if c.Dispatch.TickSeconds <= 0 {
		return fmt.Errorf("ARK_DISPATCH_TICK must be positive, got %d", c.Dispatch.TickSeconds)
	}
	if c.Notify.Shards <= 0 {
		return fmt.Errorf("ARK_NOTIFY_SHARDS must be positive, got %d", c.Notify.Shards)
	}
	if c.Notify.Retries < 0 {
		return fmt.Errorf("ARK_NOTIFY_RETRIES must not be negative, got %d", c.Notify.Retries)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
