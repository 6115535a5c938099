// Package migrations embeds the trackcheck PostgreSQL schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Sentinel errors for embedded migration validation.
var (
	ErrNoMigrations       = errors.New("no embedded migration files found")
	ErrInvalidFilename    = errors.New("invalid migration filename")
	ErrUnpairedMigration  = errors.New("unpaired migration")
	ErrSequenceGap        = errors.New("gap in migration sequence")
	ErrSequenceStart      = errors.New("migration sequence must start with 001")
	ErrMigrationNotExists = errors.New("migration file does not exist")
)

//go:embed *.sql
var embeddedMigrations embed.FS

// migrationFilenameRegex matches 001_migration_name.up.sql or 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type (
	// EmbeddedMigration wraps the migration filesystem and validates its layout
	// (naming, up/down pairing, contiguous sequence) before it is handed to golang-migrate.
	EmbeddedMigration struct {
		fs fs.FS
	}

	// Info contains parsed information about a migration file.
	Info struct {
		Sequence  int
		Name      string
		Direction string // "up" or "down"
		Filename  string
	}
)

// NewEmbeddedMigration creates an EmbeddedMigration over filesystem.
// Pass nil to use the migrations compiled into the binary.
func NewEmbeddedMigration(filesystem fs.FS) *EmbeddedMigration {
	if filesystem == nil {
		filesystem = embeddedMigrations
	}

	return &EmbeddedMigration{fs: filesystem}
}

// FS returns the migration filesystem.
func (e *EmbeddedMigration) FS() fs.FS {
	return e.fs
}

// List returns all migration files that conform to the naming standard, sorted lexicographically.
// 001_name.down.sql sorts before 001_name.up.sql, and both before 002_*.
func (e *EmbeddedMigration) List() ([]string, error) {
	entries, err := fs.ReadDir(e.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".sql" && migrationFilenameRegex.MatchString(name) {
			files = append(files, name)
		}
	}

	sort.Strings(files)

	return files, nil
}

// Content returns the content of a single migration file.
func (e *EmbeddedMigration) Content(filename string) ([]byte, error) {
	data, err := fs.ReadFile(e.fs, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMigrationNotExists, filename)
	}

	return data, nil
}

// Validate checks that at least one migration exists, that every up file has a down
// file and that sequence numbers start at 001 without gaps.
func (e *EmbeddedMigration) Validate() error {
	files, err := e.List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoMigrations
	}

	parsed := make([]*Info, 0, len(files))

	for _, file := range files {
		info, err := ParseFilename(file)
		if err != nil {
			return err
		}

		parsed = append(parsed, info)
	}

	if err := validatePairing(parsed); err != nil {
		return err
	}

	return validateSequence(parsed)
}

// ParseFilename splits a migration filename into sequence, name and direction.
func ParseFilename(filename string) (*Info, error) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 { //nolint:mnd // full match + 3 groups
		return nil, fmt.Errorf("%w: %s (expected 001_name.up.sql or 001_name.down.sql)",
			ErrInvalidFilename, filename)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad sequence in %s: %w", ErrInvalidFilename, filename, err)
	}

	return &Info{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

func validatePairing(infos []*Info) error {
	directions := make(map[string]map[string]bool)
	order := make([]string, 0, len(infos))

	for _, info := range infos {
		key := fmt.Sprintf("%03d_%s", info.Sequence, info.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
			order = append(order, key)
		}

		directions[key][info.Direction] = true
	}

	for _, key := range order {
		if !directions[key]["up"] {
			return fmt.Errorf("%w: missing up migration for %s", ErrUnpairedMigration, key)
		}

		if !directions[key]["down"] {
			return fmt.Errorf("%w: missing down migration for %s", ErrUnpairedMigration, key)
		}
	}

	return nil
}

func validateSequence(infos []*Info) error {
	seen := make(map[int]bool)
	sequences := make([]int, 0, len(infos))

	for _, info := range infos {
		if !seen[info.Sequence] {
			seen[info.Sequence] = true
			sequences = append(sequences, info.Sequence)
		}
	}

	sort.Ints(sequences)

	if sequences[0] != 1 {
		return fmt.Errorf("%w, found %03d", ErrSequenceStart, sequences[0])
	}

	for i := 1; i < len(sequences); i++ {
		if sequences[i] != sequences[i-1]+1 {
			return fmt.Errorf("%w: expected %03d, found %03d", ErrSequenceGap, sequences[i-1]+1, sequences[i])
		}
	}

	return nil
}
