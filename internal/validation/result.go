package validation

import (
	"time"

	"github.com/correlator-io/trackcheck/internal/ingestion"
)

// Issue, IssueType and Severity are shared with the per-record checks.
type (
	Issue     = ingestion.Issue
	IssueType = ingestion.IssueType
	Severity  = ingestion.Severity
)

const (
	IssueRequiredProperty = ingestion.IssueRequiredProperty
	IssueDataType         = ingestion.IssueDataType
	IssueTimestampOrder   = ingestion.IssueTimestampOrder
	IssueEventDependency  = ingestion.IssueEventDependency
	IssueFunnelIncomplete = ingestion.IssueFunnelIncomplete
	IssueFunnelSequence   = ingestion.IssueFunnelSequence

	SeverityError   = ingestion.SeverityError
	SeverityWarning = ingestion.SeverityWarning
)

type (
	// Result is the outcome of validating one log file. Valid is true iff Errors
	// is empty; warnings never affect it.
	Result struct {
		FileName string  `json:"file_name"`
		Valid    bool    `json:"valid"`
		Errors   []Issue `json:"errors"`
		Warnings []Issue `json:"warnings"`
		Stats    Stats   `json:"stats"`
	}

	// Stats are the per-file aggregates.
	Stats struct {
		TotalEvents              int            `json:"total_events"`
		TotalUsers               int            `json:"total_users"`
		UniqueEventTypes         int            `json:"unique_event_types"`
		EventCounts              map[string]int `json:"event_counts"`
		UserCounts               map[string]int `json:"user_counts"`
		TimeRange                TimeRange      `json:"time_range"`
		DependencyViolations     int            `json:"dependency_violations"`
		TimestampOrderViolations int            `json:"timestamp_order_violations"`
		PropertyViolations       int            `json:"property_violations"`
		ParseFailures            int            `json:"parse_failures"`
	}

	// TimeRange spans the valid timestamps of all timelines. Both ends are nil
	// when no timeline holds a valid timestamp.
	TimeRange struct {
		Start *time.Time `json:"start,omitempty"`
		End   *time.Time `json:"end,omitempty"`
	}
)

// NewResult returns an empty, valid result for fileName.
func NewResult(fileName string) *Result {
	return &Result{
		FileName: fileName,
		Valid:    true,
		Errors:   []Issue{},
		Warnings: []Issue{},
		Stats:    newStats(),
	}
}

// Add files each issue under Errors or Warnings by severity.
func (r *Result) Add(issues ...Issue) {
	for _, issue := range issues {
		if issue.IsError() {
			r.Errors = append(r.Errors, issue)
			r.Valid = false

			continue
		}

		r.Warnings = append(r.Warnings, issue)
	}
}

// IssueTypes returns the distinct issue types of the result in first-seen
// order, errors before warnings.
func (r *Result) IssueTypes() []string {
	seen := make(map[IssueType]bool)
	types := make([]string, 0)

	for _, list := range [][]Issue{r.Errors, r.Warnings} {
		for _, issue := range list {
			if !seen[issue.Type] {
				seen[issue.Type] = true
				types = append(types, string(issue.Type))
			}
		}
	}

	return types
}

func newStats() Stats {
	return Stats{
		EventCounts: map[string]int{},
		UserCounts:  map[string]int{},
	}
}
