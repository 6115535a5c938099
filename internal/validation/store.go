package validation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by Store.GetRun for an unknown run id.
var ErrRunNotFound = errors.New("validation run not found")

type (
	// Run is one persisted validation of a log against a schema.
	//
	// ContentDigest and SchemaDigest identify the input; validating the same
	// bytes against the same schema again is a duplicate of the earlier run.
	Run struct {
		ID            uuid.UUID `json:"run_id"`
		FileName      string    `json:"file_name"`
		ContentDigest string    `json:"content_digest"`
		SchemaDigest  string    `json:"schema_digest"`
		CreatedAt     time.Time `json:"created_at"`
		Result        *Result   `json:"result"`
	}

	// Store persists validation runs.
	//
	// Implementations: storage.RunStore (PostgreSQL) and storage.MemoryRunStore.
	Store interface {
		// SaveRun stores run. When a run with the same digests already exists,
		// nothing is written, duplicate is true and run.ID and run.CreatedAt are
		// replaced with the stored run's values.
		SaveRun(ctx context.Context, run *Run) (stored bool, duplicate bool, err error)

		// GetRun returns the run with id, or an error wrapping ErrRunNotFound.
		GetRun(ctx context.Context, id uuid.UUID) (*Run, error)

		// ListRuns returns up to limit runs, newest first. A non-empty fileName
		// restricts the list to runs of that file.
		ListRuns(ctx context.Context, fileName string, limit int) ([]*Run, error)

		// HealthCheck reports whether the store can serve requests.
		HealthCheck(ctx context.Context) error
	}
)

// NewRun wraps a result in a Run with a fresh id.
func NewRun(result *Result, contentDigest, schemaDigest string) *Run {
	return &Run{
		ID:            uuid.New(),
		FileName:      result.FileName,
		ContentDigest: contentDigest,
		SchemaDigest:  schemaDigest,
		CreatedAt:     time.Now().UTC(),
		Result:        result,
	}
}
