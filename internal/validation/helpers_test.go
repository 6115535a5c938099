package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trackcheck/internal/ingestion"
	"github.com/correlator-io/trackcheck/internal/taxonomy"
)

func newTestSchema(t *testing.T, def taxonomy.Definition) *taxonomy.Schema {
	t.Helper()

	schema, err := taxonomy.NewSchema(def)
	require.NoError(t, err)

	return schema
}

func checkoutSchema(t *testing.T) *taxonomy.Schema {
	t.Helper()

	return newTestSchema(t, taxonomy.Definition{
		Events: []taxonomy.EventDefinition{
			{Name: "view_item"},
			{Name: "add_to_cart", Requires: []string{"view_item"}},
			{Name: "purchase", Requires: []string{"view_item", "add_to_cart"}},
		},
		Properties: []taxonomy.PropertyDefinition{
			{Name: "price", Event: "purchase", Type: taxonomy.DataTypeNumber},
		},
		Funnels: []taxonomy.FunnelDefinition{
			{Name: "checkout", Steps: []string{"view_item", "add_to_cart", "purchase"}},
		},
	})
}

// track renders one track record; a string time is logged as-is.
func track(user, event string, at any) string {
	if s, ok := at.(string); ok {
		at = fmt.Sprintf("%q", s)
	}

	return fmt.Sprintf(`{"type":"track","event":%q,"distinct_id":%q,"time":%v}`, event, user, at)
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func parseRecords(t *testing.T, ls ...string) []*ingestion.Record {
	t.Helper()

	records := make([]*ingestion.Record, 0, len(ls))
	for i, l := range ls {
		rec, err := ingestion.ParseLine([]byte(l), i, i+1)
		require.NoError(t, err)

		records = append(records, rec)
	}

	return records
}

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func countType(issues []Issue, typ IssueType) int {
	n := 0

	for _, issue := range issues {
		if issue.Type == typ {
			n++
		}
	}

	return n
}
