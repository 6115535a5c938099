// Package report renders validation results for people (text) and machines (JSON).
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/correlator-io/trackcheck/internal/validation"
)

const (
	topEvents   = 10
	maxWarnings = 10
	ruleWidth   = 60
)

type (
	// EventFrequency is one row of the top events table.
	EventFrequency struct {
		Name    string  `json:"name"`
		Count   int     `json:"count"`
		Percent float64 `json:"percent"`
	}

	// IssueGroup collects issues sharing a type and severity.
	IssueGroup struct {
		Type     validation.IssueType `json:"type"`
		Severity validation.Severity  `json:"severity"`
		Count    int                  `json:"count"`
		Example  string               `json:"example"`
	}
)

// TopEvents returns the n most frequent events with their share of all
// records. Ties are broken by name.
func TopEvents(stats validation.Stats, n int) []EventFrequency {
	rows := make([]EventFrequency, 0, len(stats.EventCounts))
	for name, count := range stats.EventCounts {
		row := EventFrequency{Name: name, Count: count}
		if stats.TotalEvents > 0 {
			row.Percent = float64(count) * 100 / float64(stats.TotalEvents)
		}

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}

		return rows[i].Name < rows[j].Name
	})

	if len(rows) > n {
		rows = rows[:n]
	}

	return rows
}

// GroupIssues groups issues by (type, severity) in order of first appearance.
// The first message of each group is kept as its example.
func GroupIssues(issues []validation.Issue) []IssueGroup {
	type key struct {
		typ      validation.IssueType
		severity validation.Severity
	}

	index := make(map[key]int)
	groups := make([]IssueGroup, 0)

	for _, issue := range issues {
		k := key{issue.Type, issue.Severity}
		if i, ok := index[k]; ok {
			groups[i].Count++

			continue
		}

		index[k] = len(groups)
		groups = append(groups, IssueGroup{
			Type:     issue.Type,
			Severity: issue.Severity,
			Count:    1,
			Example:  issue.Message,
		})
	}

	return groups
}

// Text renders a result as a console report.
func Text(result *validation.Result) string {
	var b strings.Builder

	_ = WriteText(&b, result)

	return b.String()
}

// WriteText writes the console report for result to w.
func WriteText(w io.Writer, result *validation.Result) error {
	p := &printer{w: w}

	status := "PASSED"
	if !result.Valid {
		status = "FAILED"
	}

	p.line(strings.Repeat("=", ruleWidth))
	p.line("Validation %s: %s", status, result.FileName)
	p.line(strings.Repeat("=", ruleWidth))

	stats := result.Stats
	p.line("")
	p.line("Statistics")
	p.line("  Total events:       %d", stats.TotalEvents)
	p.line("  Total users:        %d", stats.TotalUsers)
	p.line("  Unique event types: %d", stats.UniqueEventTypes)

	if stats.ParseFailures > 0 {
		p.line("  Unparsable lines:   %d", stats.ParseFailures)
	}

	if stats.TimeRange.Start != nil && stats.TimeRange.End != nil {
		p.line("  Time range:         %s to %s",
			stats.TimeRange.Start.UTC().Format(time.RFC3339),
			stats.TimeRange.End.UTC().Format(time.RFC3339))
	}

	if top := TopEvents(stats, topEvents); len(top) > 0 {
		p.line("")
		p.line("Top events")

		for _, row := range top {
			p.line("  %-30s %8d  %5.1f%%", row.Name, row.Count, row.Percent)
		}
	}

	if len(result.Errors) > 0 {
		p.line("")
		p.line("Errors (%d)", len(result.Errors))

		for _, group := range GroupIssues(result.Errors) {
			p.line("  [%s/%s] x%d: %s", group.Type, group.Severity, group.Count, group.Example)
		}
	}

	if len(result.Warnings) > 0 {
		p.line("")
		p.line("Warnings (%d)", len(result.Warnings))

		for i, warning := range result.Warnings {
			if i == maxWarnings {
				p.line("  ... and %d more", len(result.Warnings)-maxWarnings)

				break
			}

			p.line("  [%s] %s", warning.Type, warning.Message)
		}
	}

	p.line("")
	p.line("Summary: %d dependency violations, %d timestamp order violations, %d property violations",
		stats.DependencyViolations, stats.TimestampOrderViolations, stats.PropertyViolations)

	return p.err
}

// WriteDirectoryText writes one report per file, in file name order, followed
// by a one-line total.
func WriteDirectoryText(w io.Writer, results map[string]*validation.Result) error {
	names := sortedNames(results)

	for _, name := range names {
		if err := WriteText(w, results[name]); err != nil {
			return err
		}

		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	invalid := 0

	for _, result := range results {
		if !result.Valid {
			invalid++
		}
	}

	_, err := fmt.Fprintf(w, "%d files validated, %d passed, %d failed\n", len(results), len(results)-invalid, invalid)

	return err
}

func sortedNames(results map[string]*validation.Result) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// printer remembers the first write error so the report body stays linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}

	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
