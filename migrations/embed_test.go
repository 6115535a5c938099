package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_AreValid(t *testing.T) {
	embedded := NewEmbeddedMigration(nil)

	files, err := embedded.List()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_create_validation_runs.down.sql",
		"001_create_validation_runs.up.sql",
		"002_index_validation_runs_file_name.down.sql",
		"002_index_validation_runs_file_name.up.sql",
	}, files)

	require.NoError(t, embedded.Validate())

	content, err := embedded.Content("001_create_validation_runs.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS validation_runs")
}

func TestEmbeddedMigration_Validate(t *testing.T) {
	sql := &fstest.MapFile{Data: []byte("SELECT 1;")}

	tests := []struct {
		name    string
		fs      fstest.MapFS
		wantErr error
	}{
		{
			name:    "empty",
			fs:      fstest.MapFS{"README.md": sql},
			wantErr: ErrNoMigrations,
		},
		{
			name: "missing down",
			fs: fstest.MapFS{
				"001_init.up.sql": sql,
			},
			wantErr: ErrUnpairedMigration,
		},
		{
			name: "missing up",
			fs: fstest.MapFS{
				"001_init.down.sql": sql,
			},
			wantErr: ErrUnpairedMigration,
		},
		{
			name: "sequence gap",
			fs: fstest.MapFS{
				"001_init.up.sql":    sql,
				"001_init.down.sql":  sql,
				"003_later.up.sql":   sql,
				"003_later.down.sql": sql,
			},
			wantErr: ErrSequenceGap,
		},
		{
			name: "does not start at one",
			fs: fstest.MapFS{
				"002_init.up.sql":   sql,
				"002_init.down.sql": sql,
			},
			wantErr: ErrSequenceStart,
		},
		{
			name: "valid with ignored files",
			fs: fstest.MapFS{
				"001_init.up.sql":   sql,
				"001_init.down.sql": sql,
				"notes.sql":         sql,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEmbeddedMigration(tt.fs).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseFilename(t *testing.T) {
	info, err := ParseFilename("007_add_index.down.sql")
	require.NoError(t, err)
	assert.Equal(t, 7, info.Sequence)
	assert.Equal(t, "add_index", info.Name)
	assert.Equal(t, "down", info.Direction)

	_, err = ParseFilename("7_add_index.sql")
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestEmbeddedMigration_ContentMissing(t *testing.T) {
	_, err := NewEmbeddedMigration(nil).Content("999_missing.up.sql")
	assert.ErrorIs(t, err, ErrMigrationNotExists)
}
