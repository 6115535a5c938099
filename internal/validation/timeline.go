package validation

import (
	"sort"

	"github.com/correlator-io/trackcheck/internal/ingestion"
)

type (
	// Entry is one record on a user's timeline.
	Entry struct {
		EventName string
		Time      ingestion.Timestamp
		Record    *ingestion.Record
	}

	// Timeline is one user's history. Entries are sorted by time; Ingested keeps
	// the order in which the records appeared in the file.
	Timeline struct {
		UserID   string
		Entries  []Entry
		Ingested []Entry
	}
)

// BuildTimelines groups records by user id. Records without a user id are left
// out. Timelines are returned in order of each user's first record so results
// do not depend on map iteration.
func BuildTimelines(records []*ingestion.Record) []*Timeline {
	index := make(map[string]*Timeline)
	timelines := make([]*Timeline, 0)

	for _, rec := range records {
		if !rec.HasUser() {
			continue
		}

		tl, ok := index[rec.UserID]
		if !ok {
			tl = &Timeline{UserID: rec.UserID}
			index[rec.UserID] = tl
			timelines = append(timelines, tl)
		}

		tl.Ingested = append(tl.Ingested, Entry{EventName: rec.EventName, Time: rec.Time, Record: rec})
	}

	for _, tl := range timelines {
		tl.Entries = SortEntriesByTime(tl.Ingested)
	}

	return timelines
}

// SortEntriesByTime returns a copy of entries stable-sorted by ascending time.
//
// Invalid timestamps compare as neither before nor after anything, so the
// ordering is not a strict weak order once they appear: the sort still
// terminates, but entries on either side of an invalid one may stay out of
// order. The monotonicity check reports exactly those leftovers.
func SortEntriesByTime(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	return sorted
}

// EventNames returns the sorted event names, skipping records without one.
func (t *Timeline) EventNames() []string {
	names := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.EventName != "" {
			names = append(names, e.EventName)
		}
	}

	return names
}
