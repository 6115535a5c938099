package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/correlator-io/trackcheck/internal/validation"
)

// Sentinel errors for run storage.
var (
	// ErrRunStoreFailed is returned when a run cannot be written or read.
	ErrRunStoreFailed = errors.New("validation run storage failed")

	// ErrNilRun is returned when SaveRun is called without a run or result.
	ErrNilRun = errors.New("validation run cannot be nil")

	_ validation.Store = (*RunStore)(nil)
)

// RunStore is the PostgreSQL validation.Store. Runs are idempotent on
// (content_digest, schema_digest): saving the same input twice keeps the first
// row and reports a duplicate.
type RunStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewRunStore creates a RunStore on conn. A nil logger uses slog.Default.
func NewRunStore(conn *Connection, logger *slog.Logger) (*RunStore, error) {
	if conn == nil || conn.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &RunStore{conn: conn, logger: logger}, nil
}

// SaveRun implements validation.Store.
func (s *RunStore) SaveRun(ctx context.Context, run *validation.Run) (bool, bool, error) {
	if run == nil || run.Result == nil {
		return false, false, ErrNilRun
	}

	startTime := time.Now()

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return false, false, fmt.Errorf("%w: failed to marshal result: %w", ErrRunStoreFailed, err)
	}

	// DO NOTHING returns no row on conflict; the existing run is read back below.
	query := `
		INSERT INTO validation_runs (
			run_id,
			file_name,
			content_digest,
			schema_digest,
			valid,
			total_events,
			total_users,
			error_count,
			warning_count,
			issue_types,
			result,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (content_digest, schema_digest) DO NOTHING
		RETURNING run_id
	`

	var insertedID uuid.UUID

	err = s.conn.DB.QueryRowContext(ctx, query,
		run.ID,
		run.FileName,
		run.ContentDigest,
		run.SchemaDigest,
		run.Result.Valid,
		run.Result.Stats.TotalEvents,
		run.Result.Stats.TotalUsers,
		len(run.Result.Errors),
		len(run.Result.Warnings),
		pq.Array(run.Result.IssueTypes()),
		string(resultJSON),
		run.CreatedAt,
	).Scan(&insertedID)

	switch {
	case err == nil:
		s.logger.Info("Stored validation run",
			slog.String("run_id", run.ID.String()),
			slog.String("file_name", run.FileName),
			slog.Bool("valid", run.Result.Valid),
			slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))

		return true, false, nil
	case errors.Is(err, sql.ErrNoRows):
		return s.loadDuplicate(ctx, run)
	default:
		s.logger.Error("Failed to store validation run",
			slog.String("file_name", run.FileName),
			slog.String("error", err.Error()))

		return false, false, fmt.Errorf("%w: %w", ErrRunStoreFailed, err)
	}
}

func (s *RunStore) loadDuplicate(ctx context.Context, run *validation.Run) (bool, bool, error) {
	err := s.conn.DB.QueryRowContext(ctx, `
		SELECT run_id, created_at
		FROM validation_runs
		WHERE content_digest = $1 AND schema_digest = $2
	`, run.ContentDigest, run.SchemaDigest).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return false, false, fmt.Errorf("%w: failed to read existing run: %w", ErrRunStoreFailed, err)
	}

	s.logger.Info("Validation run already stored",
		slog.String("run_id", run.ID.String()),
		slog.String("file_name", run.FileName))

	return false, true, nil
}

// GetRun implements validation.Store.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*validation.Run, error) {
	row := s.conn.DB.QueryRowContext(ctx, `
		SELECT run_id, file_name, content_digest, schema_digest, created_at, result
		FROM validation_runs
		WHERE run_id = $1
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", validation.ErrRunNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunStoreFailed, err)
	}

	return run, nil
}

// ListRuns implements validation.Store.
func (s *RunStore) ListRuns(ctx context.Context, fileName string, limit int) ([]*validation.Run, error) {
	rows, err := s.conn.DB.QueryContext(ctx, `
		SELECT run_id, file_name, content_digest, schema_digest, created_at, result
		FROM validation_runs
		WHERE $1::text = '' OR file_name = $1::text
		ORDER BY created_at DESC, run_id
		LIMIT $2
	`, fileName, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunStoreFailed, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	runs := make([]*validation.Run, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRunStoreFailed, err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRunStoreFailed, err)
	}

	return runs, nil
}

// HealthCheck implements validation.Store.
func (s *RunStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*validation.Run, error) {
	var (
		run        validation.Run
		resultJSON []byte
	)

	if err := row.Scan(
		&run.ID,
		&run.FileName,
		&run.ContentDigest,
		&run.SchemaDigest,
		&run.CreatedAt,
		&resultJSON,
	); err != nil {
		return nil, err
	}

	run.Result = &validation.Result{}
	if err := json.Unmarshal(resultJSON, run.Result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}

	run.CreatedAt = run.CreatedAt.UTC()

	return &run, nil
}
