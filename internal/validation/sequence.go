package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/correlator-io/trackcheck/internal/taxonomy"
)

// Analysis is what the sequence checks found on one timeline.
type Analysis struct {
	Issues                   []Issue
	DependencyViolations     int
	TimestampOrderViolations int
}

// SequenceAnalyzer runs the per-user checks. It is stateless between timelines.
type SequenceAnalyzer struct {
	schema *taxonomy.Schema
	order  OrderCheck
}

// NewSequenceAnalyzer creates an analyzer for schema. An empty order selects
// OrderCheckSorted.
func NewSequenceAnalyzer(schema *taxonomy.Schema, order OrderCheck) *SequenceAnalyzer {
	if order == "" {
		order = OrderCheckSorted
	}

	return &SequenceAnalyzer{schema: schema, order: order}
}

// Analyze runs monotonicity, dependency and funnel checks on tl, in that order.
func (a *SequenceAnalyzer) Analyze(tl *Timeline) Analysis {
	entries := tl.Entries
	if a.order == OrderCheckIngestion {
		entries = tl.Ingested
	}

	ordering := CheckMonotonicity(tl.UserID, entries)
	dependencies := CheckDependencies(a.schema, tl)
	funnels := CheckFunnels(a.schema.Funnels(), tl)

	issues := make([]Issue, 0, len(ordering)+len(dependencies)+len(funnels))
	issues = append(issues, ordering...)
	issues = append(issues, dependencies...)
	issues = append(issues, funnels...)

	return Analysis{
		Issues:                   issues,
		DependencyViolations:     len(dependencies),
		TimestampOrderViolations: len(ordering),
	}
}

// CheckMonotonicity emits one TIMESTAMP_ORDER error for every entry whose valid
// timestamp is strictly earlier than the last valid timestamp before it.
// Entries with invalid timestamps are skipped; they neither trigger nor reset
// the check.
func CheckMonotonicity(userID string, entries []Entry) []Issue {
	var (
		issues []Issue
		prev   *Entry
	)

	for i := range entries {
		cur := &entries[i]
		if !cur.Time.Valid {
			continue
		}

		if prev != nil && cur.Time.Before(prev.Time) {
			issues = append(issues, Issue{
				Type:     IssueTimestampOrder,
				Severity: SeverityError,
				Message: fmt.Sprintf("Event %s at %s comes after %s at %s for user %s",
					displayName(cur.EventName), cur.Time, displayName(prev.EventName), prev.Time, userID),
				Line:      cur.Record.Line,
				UserID:    userID,
				EventName: cur.EventName,
				Details: map[string]string{
					"previous_event": prev.EventName,
					"previous_time":  prev.Time.String(),
					"previous_line":  strconv.Itoa(prev.Record.Line),
					"time":           cur.Time.String(),
				},
			})
		}

		prev = cur
	}

	return issues
}

// CheckDependencies walks the sorted timeline with a growing set of seen events.
// Each requirement of an event that has not been seen yet is one
// EVENT_DEPENDENCY error. An event joins the set only after its own check, so it
// can satisfy later repeats but never itself.
func CheckDependencies(schema *taxonomy.Schema, tl *Timeline) []Issue {
	var issues []Issue

	seen := make(map[string]bool)

	for _, entry := range tl.Entries {
		if entry.EventName == "" {
			continue
		}

		if def, ok := schema.Event(entry.EventName); ok {
			for _, req := range def.Requires {
				if seen[req] {
					continue
				}

				snapshot := seenSnapshot(seen)

				issues = append(issues, Issue{
					Type:     IssueEventDependency,
					Severity: SeverityError,
					Message: fmt.Sprintf("Event %s for user %s requires %s to happen first",
						entry.EventName, tl.UserID, req),
					Line:      entry.Record.Line,
					UserID:    tl.UserID,
					EventName: entry.EventName,
					Details: map[string]string{
						"missing": req,
						"seen":    strings.Join(snapshot, ","),
					},
				})
			}
		}

		seen[entry.EventName] = true
	}

	return issues
}

// CheckFunnels scans the user's event names once per funnel with a single
// cursor. Matching is non-contiguous and stops at the first completion; only
// one traversal per user per funnel is attempted. A user who entered a funnel
// but did not finish it gets one FUNNEL_INCOMPLETE warning.
func CheckFunnels(funnels []taxonomy.FunnelDefinition, tl *Timeline) []Issue {
	var issues []Issue

	names := tl.EventNames()

	for _, funnel := range funnels {
		cursor := 0

		for _, name := range names {
			if cursor == len(funnel.Steps) {
				break
			}

			if name == funnel.Steps[cursor] {
				cursor++
			}
		}

		if cursor == 0 || cursor == len(funnel.Steps) {
			continue
		}

		issues = append(issues, Issue{
			Type:     IssueFunnelIncomplete,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("User %s stopped funnel %s after %d/%d steps",
				tl.UserID, funnel.Name, cursor, len(funnel.Steps)),
			UserID: tl.UserID,
			Details: map[string]string{
				"funnel":    funnel.Name,
				"matched":   strconv.Itoa(cursor),
				"total":     strconv.Itoa(len(funnel.Steps)),
				"next_step": funnel.Steps[cursor],
			},
		})
	}

	return issues
}

func seenSnapshot(seen map[string]bool) []string {
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func displayName(event string) string {
	if event == "" {
		return "(untyped)"
	}

	return event
}
