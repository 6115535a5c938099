package main

import (
	"errors"
	"fmt"

	"github.com/correlator-io/trackcheck/internal/config"
	"github.com/correlator-io/trackcheck/internal/storage"
	"github.com/correlator-io/trackcheck/migrations"
)

var (
	errDatabaseURLEmpty = errors.New("DATABASE_URL cannot be empty")
	errTableEmpty       = errors.New("MIGRATION_TABLE cannot be empty")
)

// Config holds the migrator configuration.
type Config struct {
	Storage        *storage.Config
	MigrationTable string
}

// LoadConfig reads DATABASE_URL, the DATABASE_* pool settings and MIGRATION_TABLE.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Storage:        storage.LoadConfig(),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", migrations.DefaultTable),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that a database is configured.
func (c *Config) Validate() error {
	if !c.Storage.Enabled() {
		return errDatabaseURLEmpty
	}

	if c.MigrationTable == "" {
		return errTableEmpty
	}

	return c.Storage.Validate()
}

// String is safe for logging; the database password is masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationTable: %s}",
		c.Storage.MaskDatabaseURL(), c.MigrationTable)
}
