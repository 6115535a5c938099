// Package ingestion turns newline-delimited analytics logs into records and runs
// the per-record checks: required fields and declared property types.
package ingestion

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedRecord is wrapped by every ParseFailure.
	ErrMalformedRecord = errors.New("malformed log record")

	// ErrLineTooLong is the cause of a ParseFailure for a line over MaxLineSize.
	ErrLineTooLong = errors.New("line too long")
)

// RecordTypeTrack is the type tag of records that describe a user action.
const RecordTypeTrack = "track"

type (
	// IssueType classifies a validation finding.
	IssueType string

	// Severity decides whether an issue affects validity. Only SeverityError does.
	Severity string

	// Issue is a single finding attached to a validation result.
	//
	// Line is the 1-based physical line of the offending record (0 when the issue
	// is not tied to one line, e.g. an unreadable file).
	Issue struct {
		Type      IssueType         `json:"type"`
		Severity  Severity          `json:"severity"`
		Message   string            `json:"message"`
		Line      int               `json:"line,omitempty"`
		UserID    string            `json:"user_id,omitempty"`
		EventName string            `json:"event_name,omitempty"`
		Details   map[string]string `json:"details,omitempty"`
	}

	// Timestamp is a record time that may be unparsable. Invalid timestamps are
	// incomparable: Before reports false whenever either side is invalid.
	Timestamp struct {
		Time  time.Time
		Valid bool
	}

	// Record is one successfully decoded log line with its resolved fields.
	Record struct {
		// Index is the 0-based position among non-blank lines of the file.
		Index int
		// Line is the 1-based physical line number.
		Line int

		Type      string
		UserID    string
		EventName string
		Time      Timestamp

		// TimePresent distinguishes a missing time field from an unparsable one.
		TimePresent bool
		// RawTime is the time value as logged, for reporting.
		RawTime any

		// Fields is the decoded top-level object; Properties is its "properties"
		// object, or nil when the record has none.
		Fields     map[string]any
		Properties map[string]any
	}

	// ParseFailure is a non-blank line that did not decode to a JSON object, or
	// a line over MaxLineSize (Text is empty then).
	ParseFailure struct {
		Index int
		Line  int
		Text  string
		Cause error
	}
)

const (
	IssueRequiredProperty IssueType = "REQUIRED_PROPERTY"
	IssueDataType         IssueType = "DATA_TYPE"
	IssueTimestampOrder   IssueType = "TIMESTAMP_ORDER"
	IssueEventDependency  IssueType = "EVENT_DEPENDENCY"
	IssueFunnelIncomplete IssueType = "FUNNEL_INCOMPLETE"
	// IssueFunnelSequence is part of the published taxonomy but no check emits it yet.
	IssueFunnelSequence IssueType = "FUNNEL_SEQUENCE"

	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// NewTimestamp returns a valid Timestamp for t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// Before reports whether t is strictly earlier than other. Either side being
// invalid yields false.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Valid && other.Valid && t.Time.Before(other.Time)
}

// String returns RFC 3339 with nanoseconds, or "invalid".
func (t Timestamp) String() string {
	if !t.Valid {
		return "invalid"
	}

	return t.Time.UTC().Format(time.RFC3339Nano)
}

// IsTrack reports whether the record describes a user action.
func (r *Record) IsTrack() bool {
	return isTrackType(r.Type)
}

// HasUser reports whether the record carries a user identifier.
func (r *Record) HasUser() bool {
	return r.UserID != ""
}

// Property returns a property value, looking in the properties object first and
// then at the top level. Null values count as absent.
func (r *Record) Property(name string) (any, bool) {
	if v, ok := r.Properties[name]; ok && v != nil {
		return v, true
	}

	if v, ok := r.Fields[name]; ok && v != nil {
		return v, true
	}

	return nil, false
}

// Error implements error.
func (f *ParseFailure) Error() string {
	return fmt.Sprintf("%s at line %d: %v", ErrMalformedRecord, f.Line, f.Cause)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (f *ParseFailure) Unwrap() error {
	return ErrMalformedRecord
}

// IsError reports whether the issue affects validity.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError
}
