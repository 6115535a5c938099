package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trackcheck/internal/taxonomy"
)

func TestCheckMonotonicity_SortedTimelineIsClean(t *testing.T) {
	tl := BuildTimelines(parseRecords(t,
		track("u", "b", 20),
		track("u", "a", 10),
	))[0]

	assert.Empty(t, CheckMonotonicity(tl.UserID, tl.Entries))
}

func TestCheckMonotonicity_FiresAroundInvalidTimestamp(t *testing.T) {
	tl := BuildTimelines(parseRecords(t,
		track("u", "a", 5),
		track("u", "b", "garbage"),
		track("u", "c", 3),
	))[0]

	issues := CheckMonotonicity(tl.UserID, tl.Entries)
	require.Len(t, issues, 1)

	assert.Equal(t, IssueTimestampOrder, issues[0].Type)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, "c", issues[0].EventName)
	assert.Equal(t, "a", issues[0].Details["previous_event"])
	assert.Equal(t, 3, issues[0].Line)
}

func TestSequenceAnalyzer_OrderModes(t *testing.T) {
	schema := newTestSchema(t, taxonomy.Definition{})
	tl := BuildTimelines(parseRecords(t,
		track("u", "late", 10),
		track("u", "early", 5),
	))[0]

	sorted := NewSequenceAnalyzer(schema, OrderCheckSorted).Analyze(tl)
	assert.Zero(t, sorted.TimestampOrderViolations)

	ingested := NewSequenceAnalyzer(schema, OrderCheckIngestion).Analyze(tl)
	assert.Equal(t, 1, ingested.TimestampOrderViolations)
	require.Len(t, ingested.Issues, 1)
	assert.Equal(t, "early", ingested.Issues[0].EventName)
}

func TestCheckDependencies_OneErrorPerMissingPrerequisite(t *testing.T) {
	schema := checkoutSchema(t)

	tests := []struct {
		name    string
		events  []string
		missing []string
	}{
		{name: "nothing seen", events: []string{"purchase"}, missing: []string{"view_item", "add_to_cart"}},
		{name: "partially satisfied", events: []string{"view_item", "purchase"}, missing: []string{"add_to_cart"}},
		{name: "fully satisfied", events: []string{"view_item", "add_to_cart", "purchase"}},
		{
			name:    "every occurrence is checked",
			events:  []string{"add_to_cart", "add_to_cart", "view_item", "add_to_cart"},
			missing: []string{"view_item", "view_item"},
		},
		{name: "unknown events are ignored", events: []string{"refund", "view_item"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := make([]string, 0, len(tt.events))
			for i, ev := range tt.events {
				ls = append(ls, track("u", ev, 100+i))
			}

			issues := CheckDependencies(schema, BuildTimelines(parseRecords(t, ls...))[0])
			require.Len(t, issues, len(tt.missing))

			for i, issue := range issues {
				assert.Equal(t, IssueEventDependency, issue.Type)
				assert.Equal(t, SeverityError, issue.Severity)
				assert.Equal(t, tt.missing[i], issue.Details["missing"])
			}
		})
	}
}

func TestCheckDependencies_RepeatedRequirementCountsOnce(t *testing.T) {
	schema := newTestSchema(t, taxonomy.Definition{Events: []taxonomy.EventDefinition{
		{Name: "login"},
		{Name: "checkout", Requires: []string{"login", "login"}},
	}})

	analysis := NewSequenceAnalyzer(schema, OrderCheckSorted).
		Analyze(BuildTimelines(parseRecords(t, track("u", "checkout", 1)))[0])

	assert.Equal(t, 1, analysis.DependencyViolations)
	require.Len(t, analysis.Issues, 1)
	assert.Equal(t, "login", analysis.Issues[0].Details["missing"])
}

func TestCheckDependencies_ReportsSeenSnapshot(t *testing.T) {
	tl := BuildTimelines(parseRecords(t,
		track("u", "view_item", 1),
		track("u", "refund", 2),
		track("u", "purchase", 3),
	))[0]

	issues := CheckDependencies(checkoutSchema(t), tl)
	require.Len(t, issues, 1)
	assert.Equal(t, "refund,view_item", issues[0].Details["seen"])
	assert.Equal(t, "purchase", issues[0].EventName)
}

func TestCheckFunnels(t *testing.T) {
	funnels := []taxonomy.FunnelDefinition{{Name: "abc", Steps: []string{"A", "B", "C"}}}

	tests := []struct {
		name    string
		events  []string
		matched string
	}{
		{name: "non-contiguous partial", events: []string{"A", "X", "B"}, matched: "2"},
		{name: "complete with noise", events: []string{"X", "A", "Y", "B", "Z", "C"}},
		{name: "never entered", events: []string{"B", "C"}},
		{name: "completed then restarted", events: []string{"A", "B", "C", "A"}},
		{name: "out of order counts only the prefix", events: []string{"B", "A", "C"}, matched: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := make([]string, 0, len(tt.events))
			for i, ev := range tt.events {
				ls = append(ls, track("u", ev, 100+i))
			}

			issues := CheckFunnels(funnels, BuildTimelines(parseRecords(t, ls...))[0])
			if tt.matched == "" {
				assert.Empty(t, issues)

				return
			}

			require.Len(t, issues, 1)
			assert.Equal(t, IssueFunnelIncomplete, issues[0].Type)
			assert.Equal(t, SeverityWarning, issues[0].Severity)
			assert.Equal(t, tt.matched, issues[0].Details["matched"])
			assert.Equal(t, "3", issues[0].Details["total"])
		})
	}
}
