package taxonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/correlator-io/trackcheck/internal/config"
)

// DefaultSchemaPath is the taxonomy file looked up when TRACKCHECK_SCHEMA_PATH is unset.
const DefaultSchemaPath = "taxonomy.yaml"

// SchemaPathEnvVar is the environment variable naming the taxonomy file.
const SchemaPathEnvVar = "TRACKCHECK_SCHEMA_PATH"

// Sentinel errors for schema loading.
var (
	ErrSchemaRead  = errors.New("failed to read schema file")
	ErrSchemaParse = errors.New("failed to parse schema document")
	ErrSchemaEmpty = errors.New("schema document is empty")
)

// Parse decodes a YAML (or JSON, which is valid YAML) taxonomy document and builds a Schema.
func Parse(data []byte) (*Schema, error) {
	if len(data) == 0 {
		return nil, ErrSchemaEmpty
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaParse, err)
	}

	return NewSchema(def)
}

// LoadFile reads and parses the taxonomy at path.
//
// Unlike optional configuration, a missing or malformed taxonomy is an error:
// nothing can be validated without it.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSchemaRead, path, err)
	}

	schema, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Loaded taxonomy",
		slog.String("path", path),
		slog.Int("events", len(schema.events)),
		slog.Int("properties", len(schema.properties)),
		slog.Int("funnels", len(schema.funnels)))

	return schema, nil
}

// LoadFromEnv loads the taxonomy named by TRACKCHECK_SCHEMA_PATH, falling back to
// taxonomy.yaml in the working directory.
func LoadFromEnv() (*Schema, error) {
	return LoadFile(config.GetEnvStr(SchemaPathEnvVar, DefaultSchemaPath))
}
