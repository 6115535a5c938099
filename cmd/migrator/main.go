// Package main is the trackcheck schema migration tool. Migrations are
// embedded in the binary; only DATABASE_URL is required.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/correlator-io/trackcheck/internal/config"
	"github.com/correlator-io/trackcheck/internal/storage"
	"github.com/correlator-io/trackcheck/migrations"
)

const (
	version = "1.0.0-dev"
	name    = "migrator"
)

var errUnknownCommand = errors.New("unknown command")

// commandRunner is the part of migrations.Runner the commands use.
type commandRunner interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
}

func main() {
	var (
		help        = flag.Bool("help", false, "Show help information")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", name, version) //nolint:forbidigo

		return
	}

	if *help || flag.NArg() != 1 {
		printUsage(os.Stdout)

		return
	}

	_ = godotenv.Load()

	logger := config.NewLogger()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Initializing migration runner", slog.String("config", cfg.String()))

	conn, err := storage.NewConnection(cfg.Storage)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	runner, err := migrations.NewRunner(conn.DB, cfg.MigrationTable, logger)
	if err != nil {
		_ = conn.Close()

		logger.Error("Failed to create migration runner", slog.String("error", err.Error()))
		os.Exit(1) //nolint:gocritic
	}

	err = executeCommand(flag.Arg(0), runner, os.Stdout)

	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("Failed to close migration runner", slog.String("error", closeErr.Error()))
	}

	if err != nil {
		logger.Error("Migration failed", slog.String("command", flag.Arg(0)), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// executeCommand runs one migrator command, writing human-readable output to out.
func executeCommand(command string, runner commandRunner, out io.Writer) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}

		state := "clean"
		if dirty {
			state = "dirty"
		}

		_, err = fmt.Fprintf(out, "version %d (%s)\n", v, state)

		return err
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

func printUsage(out io.Writer) {
	_, _ = fmt.Fprintf(out, `%s v%s - trackcheck database migrations

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up       Apply all pending migrations
    down     Roll back the last migration
    version  Show the applied migration version

OPTIONS:
    -help     Show this help message
    -version  Show version information

ENVIRONMENT VARIABLES:
    DATABASE_URL     PostgreSQL connection string (required)
    MIGRATION_TABLE  Migration tracking table (default: %s)
`, name, version, name, migrations.DefaultTable)
}
