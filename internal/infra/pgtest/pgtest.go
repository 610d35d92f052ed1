// Package pgtest opens the database used by Postgres-backed store tests.
package pgtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/infra"
	"ridehail/internal/logger"
)

// Open migrates the database named by ARK_TEST_DSN and truncates tables.
// The test is skipped when ARK_TEST_DSN is not set.
func Open(t testing.TB, tables ...string) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("ARK_TEST_DSN")
	if dsn == "" {
		t.Skip("ARK_TEST_DSN not set; skipping DB-backed tests")
	}
	if err := infra.Migrate(dsn, logger.Nop()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if len(tables) > 0 {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE"); err != nil {
			t.Fatalf("truncate tables: %v", err)
		}
	}
	return db
}
