// README: Bench runner for a live deployment; executes HTTP/DB/Redis checks and dispatch load, then prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case statusPass:
			pass++
		case statusFail:
			fail++
		case statusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	Strict      bool
	Timeout     time.Duration
	Drivers     int
	Concurrency int
	Duration    time.Duration
}

func loadConfig() Config {
	_ = godotenv.Load(".env")

	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("ARK_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", envOrDefault("ARK_DB_DSN", ""), "Postgres DSN; empty skips DB checks")
	flag.StringVar(&cfg.RedisAddr, "redis", envOrDefault("ARK_REDIS_ADDR", ""), "Redis address; empty skips pool checks")
	flag.BoolVar(&cfg.Strict, "strict", cast.ToBool(envOrDefault("ARK_BENCH_STRICT", "false")), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", cast.ToDuration(envOrDefault("ARK_BENCH_TIMEOUT", "60s")), "Total timeout")
	flag.IntVar(&cfg.Drivers, "drivers", cast.ToInt(envOrDefault("ARK_BENCH_DRIVERS", "5")), "Drivers brought online for the load checks")
	flag.IntVar(&cfg.Concurrency, "concurrency", cast.ToInt(envOrDefault("ARK_BENCH_CONCURRENCY", "20")), "Concurrent passengers")
	flag.DurationVar(&cfg.Duration, "duration", cast.ToDuration(envOrDefault("ARK_BENCH_DURATION", "10s")), "Duration of the throughput check")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
