package validation

import (
	"github.com/correlator-io/trackcheck/internal/ingestion"
)

// Aggregator accumulates the statistics of one file. The zero value is not
// usable; create one with NewAggregator.
type Aggregator struct {
	stats    Stats
	min, max ingestion.Timestamp
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{stats: newStats()}
}

// Add counts one parsed record, whether or not it passed its checks.
func (a *Aggregator) Add(rec *ingestion.Record) {
	a.stats.TotalEvents++

	if rec.EventName != "" {
		a.stats.EventCounts[rec.EventName]++
	}

	if rec.UserID != "" {
		a.stats.UserCounts[rec.UserID]++
	}
}

// AddParseFailure counts one line that did not decode.
func (a *Aggregator) AddParseFailure() {
	a.stats.ParseFailures++
}

// AddPropertyViolations adds n property type mismatches.
func (a *Aggregator) AddPropertyViolations(n int) {
	a.stats.PropertyViolations += n
}

// AddAnalysis folds in the counters of one timeline's sequence checks.
func (a *Aggregator) AddAnalysis(analysis Analysis) {
	a.stats.DependencyViolations += analysis.DependencyViolations
	a.stats.TimestampOrderViolations += analysis.TimestampOrderViolations
}

// AddTimeline widens the global time range with the valid timestamps of tl.
func (a *Aggregator) AddTimeline(tl *Timeline) {
	for _, entry := range tl.Entries {
		if !entry.Time.Valid {
			continue
		}

		if !a.min.Valid || entry.Time.Before(a.min) {
			a.min = entry.Time
		}

		if !a.max.Valid || a.max.Before(entry.Time) {
			a.max = entry.Time
		}
	}
}

// Stats returns the accumulated statistics. The maps are shared with the
// Aggregator; stop adding once Stats has been taken.
func (a *Aggregator) Stats() Stats {
	stats := a.stats
	stats.TotalUsers = len(stats.UserCounts)
	stats.UniqueEventTypes = len(stats.EventCounts)

	if a.min.Valid {
		start, end := a.min.Time, a.max.Time
		stats.TimeRange = TimeRange{Start: &start, End: &end}
	}

	return stats
}
