package middleware

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// ProblemTypeBase prefixes the RFC 7807 "type" URI; the status code is appended.
const ProblemTypeBase = "https://trackcheck.dev/problems/"

// writeProblem writes an RFC 7807 problem document. The middleware package
// cannot import api, so it keeps its own minimal writer.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) error {
	problem := struct {
		Type          string `json:"type"`
		Title         string `json:"title"`
		Status        int    `json:"status"`
		Detail        string `json:"detail"`
		Instance      string `json:"instance"`
		CorrelationID string `json:"correlation_id"` //nolint: tagliatelle
	}{
		Type:          fmt.Sprintf("%s%d", ProblemTypeBase, status),
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: GetCorrelationID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
