package report

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/correlator-io/trackcheck/internal/validation"
)

type (
	// Document is the machine-readable form of one result: the result itself plus
	// the derived views the text report shows.
	Document struct {
		*validation.Result

		TopEvents   []EventFrequency `json:"top_events"`
		ErrorGroups []IssueGroup     `json:"error_groups"`
	}

	// DirectoryDocument summarises a directory run.
	DirectoryDocument struct {
		Files   int         `json:"files"`
		Passed  int         `json:"passed"`
		Failed  int         `json:"failed"`
		Results []*Document `json:"results"`
	}
)

// NewDocument builds the JSON view of result.
func NewDocument(result *validation.Result) *Document {
	return &Document{
		Result:      result,
		TopEvents:   TopEvents(result.Stats, topEvents),
		ErrorGroups: GroupIssues(result.Errors),
	}
}

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result *validation.Result) error {
	return encode(w, NewDocument(result))
}

// WriteDirectoryJSON writes a directory run as indented JSON, files in name order.
func WriteDirectoryJSON(w io.Writer, results map[string]*validation.Result) error {
	doc := &DirectoryDocument{Files: len(results), Results: make([]*Document, 0, len(results))}

	for _, name := range sortedNames(results) {
		result := results[name]
		if result.Valid {
			doc.Passed++
		} else {
			doc.Failed++
		}

		doc.Results = append(doc.Results, NewDocument(result))
	}

	return encode(w, doc)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
