package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/correlator-io/trackcheck/internal/api/middleware"
	"github.com/correlator-io/trackcheck/internal/storage"
	"github.com/correlator-io/trackcheck/internal/validation"
)

const (
	defaultUploadName = "upload.jsonl"
	maxFileNameLength = 255
)

// handleCreateValidation validates the request body as an NDJSON log.
//
// The ?file= parameter names the log in the result and the run history. The
// run is stored and published; an upload identical to an earlier one (same
// bytes, same schema) returns the earlier run id with duplicate=true and 200
// instead of 201. Storage failures are 500s; publish failures are logged only.
func (s *Server) handleCreateValidation(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	fileName, err := uploadName(r.URL.Query().Get("file"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, r, s.logger, RequestTooLarge(tooLarge.Limit))

			return
		}

		WriteErrorResponse(w, r, s.logger, BadRequest("Failed to read request body"))

		return
	}

	start := time.Now()
	result := s.validator.ValidateBytes(fileName, body)
	s.metrics.Observe(result, time.Since(start))

	run := validation.NewRun(result, storage.ContentDigest(body), s.schemaDigest)

	_, duplicate, err := s.store.SaveRun(r.Context(), run)
	if err != nil {
		s.logger.Error("Failed to save validation run",
			slog.String("correlation_id", correlationID),
			slog.String("file", fileName),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to store validation run"))

		return
	}

	if err := s.publisher.Publish(r.Context(), run, duplicate); err != nil {
		s.logger.Warn("Failed to publish validation run",
			slog.String("correlation_id", correlationID),
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Validated uploaded log",
		slog.String("correlation_id", correlationID),
		slog.String("run_id", run.ID.String()),
		slog.String("file", fileName),
		slog.Bool("valid", result.Valid),
		slog.Bool("duplicate", duplicate),
		slog.Int("events", result.Stats.TotalEvents),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
	)

	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}

	w.Header().Set("Location", "/api/v1/validations/"+run.ID.String())
	s.writeJSON(w, r, status, newValidationResponse(run, duplicate))
}

// handleGetValidation returns one stored run.
func (s *Server) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("Run id must be a UUID"))

		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, validation.ErrRunNotFound) {
		WriteErrorResponse(w, r, s.logger, NotFound(fmt.Sprintf("Validation run %s not found", id)))

		return
	}

	if err != nil {
		s.logger.Error("Failed to load validation run",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("run_id", id.String()),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to load validation run"))

		return
	}

	s.writeJSON(w, r, http.StatusOK, newValidationResponse(run, false))
}

// handleListValidations lists recent runs, newest first, optionally for one file.
func (s *Server) handleListValidations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	runs, err := s.store.ListRuns(r.Context(), strings.TrimSpace(r.URL.Query().Get("file")), limit)
	if err != nil {
		s.logger.Error("Failed to list validation runs",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to list validation runs"))

		return
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, newRunSummary(run))
	}

	s.writeJSON(w, r, http.StatusOK, RunListResponse{Runs: summaries, Count: len(summaries), Limit: limit})
}

// uploadName reduces the client-supplied name to a base file name.
func uploadName(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultUploadName, nil
	}

	name := path.Base(strings.ReplaceAll(raw, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("invalid file name %q", raw) //nolint:err113
	}

	if len(name) > maxFileNameLength {
		return "", fmt.Errorf("file name longer than %d characters", maxFileNameLength) //nolint:err113
	}

	return name, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxListLimit {
		return 0, fmt.Errorf("limit must be an integer between 1 and %d", maxListLimit) //nolint:err113
	}

	return limit, nil
}
