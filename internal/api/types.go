package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/correlator-io/trackcheck/internal/report"
	"github.com/correlator-io/trackcheck/internal/validation"
)

type (
	// HealthStatus is the GET /health response.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"service_name"` //nolint: tagliatelle
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
		Store       string `json:"store"`
		Publisher   string `json:"publisher"`
	}

	// ValidationResponse is returned by POST /api/v1/validations and
	// GET /api/v1/validations/{id}.
	ValidationResponse struct {
		RunID         uuid.UUID        `json:"run_id"`         //nolint: tagliatelle
		Duplicate     bool             `json:"duplicate"`
		FileName      string           `json:"file_name"`      //nolint: tagliatelle
		ContentDigest string           `json:"content_digest"` //nolint: tagliatelle
		SchemaDigest  string           `json:"schema_digest"`  //nolint: tagliatelle
		CreatedAt     time.Time        `json:"created_at"`     //nolint: tagliatelle
		Result        *report.Document `json:"result"`
		Report        string           `json:"report"`
	}

	// RunSummary is one entry of GET /api/v1/validations.
	RunSummary struct {
		RunID         uuid.UUID `json:"run_id"`         //nolint: tagliatelle
		FileName      string    `json:"file_name"`      //nolint: tagliatelle
		Valid         bool      `json:"valid"`
		TotalEvents   int       `json:"total_events"`   //nolint: tagliatelle
		ErrorCount    int       `json:"error_count"`    //nolint: tagliatelle
		WarningCount  int       `json:"warning_count"`  //nolint: tagliatelle
		ContentDigest string    `json:"content_digest"` //nolint: tagliatelle
		CreatedAt     time.Time `json:"created_at"`     //nolint: tagliatelle
	}

	// RunListResponse is the GET /api/v1/validations response.
	RunListResponse struct {
		Runs  []RunSummary `json:"runs"`
		Count int          `json:"count"`
		Limit int          `json:"limit"`
	}
)

func newValidationResponse(run *validation.Run, duplicate bool) ValidationResponse {
	return ValidationResponse{
		RunID:         run.ID,
		Duplicate:     duplicate,
		FileName:      run.FileName,
		ContentDigest: run.ContentDigest,
		SchemaDigest:  run.SchemaDigest,
		CreatedAt:     run.CreatedAt,
		Result:        report.NewDocument(run.Result),
		Report:        report.Text(run.Result),
	}
}

func newRunSummary(run *validation.Run) RunSummary {
	summary := RunSummary{
		RunID:         run.ID,
		FileName:      run.FileName,
		ContentDigest: run.ContentDigest,
		CreatedAt:     run.CreatedAt,
	}

	if run.Result != nil {
		summary.Valid = run.Result.Valid
		summary.TotalEvents = run.Result.Stats.TotalEvents
		summary.ErrorCount = len(run.Result.Errors)
		summary.WarningCount = len(run.Result.Warnings)
	}

	return summary
}
