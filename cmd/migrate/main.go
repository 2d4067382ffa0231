// Command migrate applies the Postgres schema with goose.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"highlightsync/internal/config"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	config.LoadEnvFiles()
	if err := run(context.Background(), *command, *name); err != nil {
		slog.Error("migrate failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command, name string) error {
	dir := migrationsDir()
	if command == "create" {
		if name == "" {
			return fmt.Errorf("name is required for 'create' command")
		}
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Printf("Migration created: %s\n", name)
		return nil
	}
	if command != "up" && command != "down" && command != "status" {
		return fmt.Errorf("unknown command %q, use: up, down, status, create", command)
	}

	dsn, err := postgresDSN()
	if err != nil {
		return err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect %s: %w", config.RedactDSN(dsn), err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		fmt.Println("Migrations applied successfully")
	case "down":
		if err := goose.DownContext(ctx, db, dir); err != nil {
			return fmt.Errorf("rollback migration: %w", err)
		}
		fmt.Println("Migration rolled back successfully")
	case "status":
		if err := goose.StatusContext(ctx, db, dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
	}
	return nil
}
