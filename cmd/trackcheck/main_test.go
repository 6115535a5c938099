package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trackcheck/internal/api"
)

const (
	testTaxonomy = `events:
  - name: view_item
  - name: purchase
    requires: [view_item]
properties:
  - name: price
    event: purchase
    type: number
`
	goodLog = `{"type":"track","event":"view_item","distinct_id":"u1","time":1700000000}
{"type":"track","event":"purchase","distinct_id":"u1","time":1700000060,"properties":{"price":3}}
`
	badLog = `{"type":"track","event":"purchase","distinct_id":"u2","time":1700000000}
`
)

type fixture struct {
	dir    string
	schema string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	schema := filepath.Join(dir, "taxonomy.yaml")
	logs := filepath.Join(dir, "logs")

	require.NoError(t, os.WriteFile(schema, []byte(testTaxonomy), 0o600))
	require.NoError(t, os.Mkdir(logs, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(logs, "good.jsonl"), []byte(goodLog), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(logs, "bad.jsonl"), []byte(badLog), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(logs, "notes.txt"), []byte("ignored"), 0o600))

	return fixture{dir: dir, schema: schema}
}

func (f fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.dir}, parts...)...)
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer

	code := run(args, &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func TestRun_ValidFile(t *testing.T) {
	f := newFixture(t)

	code, out, _ := runCLI("-schema", f.schema, f.path("logs", "good.jsonl"))

	assert.Equal(t, exitValid, code)
	assert.Contains(t, out, "Validation PASSED: good.jsonl")
}

func TestRun_InvalidFileJSON(t *testing.T) {
	f := newFixture(t)

	code, out, _ := runCLI("-schema", f.schema, "-format", "json", f.path("logs", "bad.jsonl"))
	require.Equal(t, exitInvalid, code)

	var doc struct {
		Valid bool `json:"valid"`
		Stats struct {
			DependencyViolations int `json:"dependency_violations"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.False(t, doc.Valid)
	assert.Equal(t, 1, doc.Stats.DependencyViolations)
}

func TestRun_Directory(t *testing.T) {
	f := newFixture(t)

	code, out, _ := runCLI("-schema", f.schema, "-workers", "2", f.path("logs"))

	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, out, "Validation FAILED: bad.jsonl")
	assert.Contains(t, out, "Validation PASSED: good.jsonl")
	assert.Contains(t, out, "2 files validated, 1 passed, 1 failed")
}

func TestRun_DirectoryCustomExtension(t *testing.T) {
	f := newFixture(t)

	code, out, _ := runCLI("-schema", f.schema, "-ext", "ndjson", "-format", "json", f.path("logs"))
	require.Equal(t, exitValid, code)

	var doc struct {
		Files int `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 0, doc.Files)
}

func TestRun_UsageErrors(t *testing.T) {
	f := newFixture(t)
	good := f.path("logs", "good.jsonl")

	tests := []struct {
		name string
		args []string
	}{
		{"no path", []string{"-schema", f.schema}},
		{"two paths", []string{"-schema", f.schema, good, good}},
		{"unknown format", []string{"-schema", f.schema, "-format", "xml", good}},
		{"unknown order", []string{"-schema", f.schema, "-order", "random", good}},
		{"bad workers", []string{"-schema", f.schema, "-workers", "0", good}},
		{"missing schema", []string{"-schema", f.path("nope.yaml"), good}},
		{"missing path", []string{"-schema", f.schema, f.path("nope.jsonl")}},
		{"unknown flag", []string{"-verbose", good}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := runCLI(tt.args...)

			assert.Equal(t, exitUsage, code)
			assert.Empty(t, out)
		})
	}
}

func TestRun_SchemaFromEnv(t *testing.T) {
	f := newFixture(t)
	t.Setenv("TRACKCHECK_SCHEMA_PATH", f.schema)

	code, _, _ := runCLI(f.path("logs", "good.jsonl"))

	assert.Equal(t, exitValid, code)
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI("-version")

	assert.Equal(t, exitValid, code)
	assert.Equal(t, "trackcheck "+api.Version+"\n", out)
}

func TestOrderFlag(t *testing.T) {
	var o orderFlag

	require.NoError(t, o.Set("INGESTION"))
	assert.Equal(t, "ingestion", o.String())
	assert.Error(t, o.Set("newest"))
}
