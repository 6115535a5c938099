package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/correlator-io/trackcheck/internal/ingestion"
	"github.com/correlator-io/trackcheck/internal/taxonomy"
)

// FileValidator validates single log files against a schema. It is safe for
// concurrent use; every call builds its own state.
type FileValidator struct {
	schema    *taxonomy.Schema
	records   *ingestion.Validator
	sequences *SequenceAnalyzer
	opts      Options
	logger    *slog.Logger
}

// NewFileValidator creates a FileValidator. A nil logger uses slog.Default.
func NewFileValidator(schema *taxonomy.Schema, opts Options, logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileValidator{
		schema:    schema,
		records:   ingestion.NewValidator(schema, opts.CheckCommonProperties),
		sequences: NewSequenceAnalyzer(schema, opts.OrderCheck),
		opts:      opts,
		logger:    logger,
	}
}

// Schema returns the schema the validator checks against.
func (v *FileValidator) Schema() *taxonomy.Schema {
	return v.schema
}

// Options returns the validator's options.
func (v *FileValidator) Options() Options {
	return v.opts
}

// ValidateFile validates the file at path. A file that cannot be opened yields a
// result holding a single DATA_TYPE error; no Go error is returned.
func (v *FileValidator) ValidateFile(path string) *Result {
	name := filepath.Base(path)

	f, err := os.Open(path) //nolint:gosec // path comes from the operator or a directory listing
	if err != nil {
		v.logger.Warn("Failed to open log file",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return readFailure(name, err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			v.logger.Warn("Failed to close log file",
				slog.String("path", path),
				slog.String("error", closeErr.Error()))
		}
	}()

	return v.ValidateReader(name, f)
}

// ValidateBytes validates an in-memory log.
func (v *FileValidator) ValidateBytes(name string, data []byte) *Result {
	return v.ValidateReader(name, bytes.NewReader(data))
}

// ValidateReader validates the log read from r. The same input always yields an
// equal Result.
//
// A read error part way through is reported as one DATA_TYPE error; the records
// read before it are still analysed.
func (v *FileValidator) ValidateReader(name string, r io.Reader) *Result {
	result := NewResult(name)
	agg := NewAggregator()
	records := make([]*ingestion.Record, 0)

	reader := ingestion.NewReader(r)

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var failure *ingestion.ParseFailure
		if errors.As(err, &failure) {
			agg.AddParseFailure()
			result.Add(parseFailureIssue(failure))

			continue
		}

		if err != nil {
			v.logger.Warn("Failed to read log",
				slog.String("file", name),
				slog.String("error", err.Error()))
			result.Add(readFailureIssue(err))

			break
		}

		agg.Add(rec)
		result.Add(ingestion.CheckStructure(rec)...)

		propertyIssues := v.records.CheckProperties(rec)
		agg.AddPropertyViolations(len(propertyIssues))
		result.Add(propertyIssues...)

		records = append(records, rec)
	}

	for _, tl := range BuildTimelines(records) {
		analysis := v.sequences.Analyze(tl)
		agg.AddAnalysis(analysis)
		agg.AddTimeline(tl)
		result.Add(analysis.Issues...)
	}

	result.Stats = agg.Stats()

	v.logger.Debug("Validated log",
		slog.String("file", name),
		slog.Bool("valid", result.Valid),
		slog.Int("events", result.Stats.TotalEvents),
		slog.Int("users", result.Stats.TotalUsers),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)))

	return result
}

func readFailure(name string, err error) *Result {
	result := NewResult(name)
	result.Add(readFailureIssue(err))

	return result
}

func readFailureIssue(err error) Issue {
	return Issue{
		Type:     IssueDataType,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Failed to read log file: %v", err),
		Details:  map[string]string{"error": err.Error()},
	}
}

func parseFailureIssue(f *ingestion.ParseFailure) Issue {
	message := fmt.Sprintf("Line %d is not a valid JSON object", f.Line)
	if errors.Is(f.Cause, ingestion.ErrLineTooLong) {
		message = fmt.Sprintf("Line %d exceeds %d bytes and was skipped", f.Line, ingestion.MaxLineSize)
	}

	return Issue{
		Type:     IssueDataType,
		Severity: SeverityError,
		Message:  message,
		Line:     f.Line,
		Details: map[string]string{
			"record_index": fmt.Sprint(f.Index),
			"raw":          truncate(f.Text, maxRawLength),
			"error":        f.Cause.Error(),
		},
	}
}

const maxRawLength = 200

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
