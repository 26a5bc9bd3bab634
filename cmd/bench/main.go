// README: Benchmark runner; reuses the API's configuration for DB, Redis and token minting, adds run flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"homefix/internal/config"
)

type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	JWTSecret      string
	JWTIssuer      string
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

func main() {
	app, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	cfg := Config{JWTSecret: app.Auth.JWTSecret, JWTIssuer: app.Auth.JWTIssuer}
	if app.Store.Backend == "postgres" {
		cfg.DSN = app.DB.DSN
	}
	if app.Notify.Backend == "redis" {
		cfg.RedisAddr = app.Redis.Addr
	}
	flag.StringVar(&cfg.BaseURL, "base-url", "http://localhost"+app.HTTP.Addr, "API base URL")
	flag.StringVar(&cfg.MigrationPath, "migration", "migrations/0001_init.sql", "schema file for -apply-migration and table checks")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", false, "reset the schema before running")
	flag.BoolVar(&cfg.Strict, "strict", false, "treat PENDING cases as failures")
	flag.DurationVar(&cfg.Timeout, "timeout", time.Minute, "overall deadline")
	flag.IntVar(&cfg.Concurrency, "concurrency", 20, "workers for the race and load cases")
	flag.DurationVar(&cfg.Duration, "duration", 10*time.Second, "length of the load case")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	bench, err := NewRunner(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	counts := tally(bench.RunAll(ctx))
	fmt.Printf("\nPASS=%d FAIL=%d PENDING=%d SKIP=%d\n", counts["PASS"], counts["FAIL"], counts["PENDING"], counts["SKIP"])
	if counts["FAIL"] > 0 || (cfg.Strict && counts["PENDING"] > 0) {
		os.Exit(1)
	}
}

func tally(results []Result) map[string]int {
	counts := make(map[string]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
