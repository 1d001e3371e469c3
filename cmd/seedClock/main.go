package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/sqlite"
	"freightledger/infrastructure/timeref"
)

func main() {
	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		log.Fatalf("resolve migrations dir: %v", err)
	}

	defaultDBPath := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(migrationsDir))), "freightledger.db")
	dbPath := getenv("SQLITE_PATH", defaultDBPath)

	seed, err := seedDay(getenv("SEED_CLOCK", ""))
	if err != nil {
		log.Fatalf("parse SEED_CLOCK: %v", err)
	}

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	clock := timeref.NewService(db, audit.NewService(), 0)
	value, err := clock.Set(context.Background(), "seed", seed)
	if err != nil {
		log.Fatalf("seed time reference: %v", err)
	}

	fmt.Printf("seeded time reference (current_at=%s)\n", value.Format(time.RFC3339))
}

// seedDay parses the YYYY-MM-DD seed. The host clock is never used.
func seedDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("SEED_CLOCK is required (YYYY-MM-DD)")
	}
	return time.Parse(time.DateOnly, raw)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		filepath.Join("infrastructure", "sqlite", "migrations"),
		filepath.Join("..", "..", "infrastructure", "sqlite", "migrations"),
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations"))
	}

	tried := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		tried = append(tried, absPath)

		info, err := os.Stat(absPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return absPath, nil
		}
	}

	return "", fmt.Errorf("migrations dir not found; tried: %s", strings.Join(tried, ", "))
}
