package ingestion

import (
	"fmt"
	"strings"

	"github.com/correlator-io/trackcheck/internal/taxonomy"
)

// Required field names as they appear in REQUIRED_PROPERTY issues.
const (
	FieldType      = "type"
	FieldTime      = "time"
	FieldUserID    = "distinct_id"
	FieldEventName = "event"
)

// Validator runs the per-record checks against a schema. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	schema      *taxonomy.Schema
	checkCommon bool
}

// NewValidator creates a Validator. With checkCommon set, properties declared
// without an owning event are type-checked on every track record as well.
func NewValidator(schema *taxonomy.Schema, checkCommon bool) *Validator {
	return &Validator{schema: schema, checkCommon: checkCommon}
}

// CheckStructure reports one REQUIRED_PROPERTY error per missing required field
// (type, time, user id, and the event name of track records). A time that is
// present but cannot be parsed adds a DATA_TYPE warning.
func CheckStructure(rec *Record) []Issue {
	var issues []Issue

	if rec.Type == "" {
		issues = append(issues, missingField(rec, FieldType))
	}

	if !rec.TimePresent {
		issues = append(issues, missingField(rec, FieldTime))
	} else if !rec.Time.Valid {
		issues = append(issues, Issue{
			Type:      IssueDataType,
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Unparsable timestamp %v at line %d", rec.RawTime, rec.Line),
			Line:      rec.Line,
			UserID:    rec.UserID,
			EventName: rec.EventName,
			Details:   map[string]string{"field": FieldTime, "value": fmt.Sprint(rec.RawTime)},
		})
	}

	if rec.UserID == "" {
		issues = append(issues, missingField(rec, FieldUserID))
	}

	if rec.IsTrack() && rec.EventName == "" {
		issues = append(issues, Issue{
			Type:     IssueRequiredProperty,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Track record at line %d has no event name", rec.Line),
			Line:     rec.Line,
			UserID:   rec.UserID,
			Details:  map[string]string{"field": FieldEventName},
		})
	}

	return issues
}

// CheckProperties compares the runtime kind of each declared property of the
// record's event with its declared type. Only string, number and boolean are
// checked; absent and null values are skipped. Every mismatch is one DATA_TYPE
// warning.
func (v *Validator) CheckProperties(rec *Record) []Issue {
	if rec.EventName == "" {
		return nil
	}

	var issues []Issue

	check := func(def taxonomy.PropertyDefinition) {
		if !def.Type.IsScalar() {
			return
		}

		value, ok := rec.Property(def.Name)
		if !ok {
			return
		}

		expected := string(def.Type.Normalize())

		kind := KindOf(value)
		if strings.EqualFold(kind, expected) {
			return
		}

		issues = append(issues, Issue{
			Type:     IssueDataType,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("Property %s of event %s should be %s but is %s",
				def.Name, rec.EventName, expected, kind),
			Line:      rec.Line,
			UserID:    rec.UserID,
			EventName: rec.EventName,
			Details: map[string]string{
				"property": def.Name,
				"expected": expected,
				"actual":   kind,
			},
		})
	}

	for _, def := range v.schema.PropertiesFor(rec.EventName) {
		check(def)
	}

	if v.checkCommon {
		for _, def := range v.schema.CommonProperties() {
			check(def)
		}
	}

	return issues
}

func missingField(rec *Record, field string) Issue {
	return Issue{
		Type:      IssueRequiredProperty,
		Severity:  SeverityError,
		Message:   fmt.Sprintf("Missing required field %s at line %d", field, rec.Line),
		Line:      rec.Line,
		UserID:    rec.UserID,
		EventName: rec.EventName,
		Details:   map[string]string{"field": field},
	}
}
