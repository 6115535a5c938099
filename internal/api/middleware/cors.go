package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSPolicy is the cross-origin policy applied to every response. An origin
// list of exactly "*" allows any origin.
type CORSPolicy struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// CORS sets the Access-Control-* headers from policy and answers OPTIONS
// preflights with 204 without calling next. Header values are computed once.
func CORS(policy CORSPolicy) func(http.Handler) http.Handler {
	wildcard := len(policy.AllowedOrigins) == 1 && policy.AllowedOrigins[0] == "*"

	origins := make(map[string]bool, len(policy.AllowedOrigins))
	for _, origin := range policy.AllowedOrigins {
		origins[origin] = true
	}

	methods := strings.Join(policy.AllowedMethods, ", ")
	headers := strings.Join(policy.AllowedHeaders, ", ")

	var maxAge string
	if policy.MaxAge > 0 {
		maxAge = strconv.Itoa(policy.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			switch origin := r.Header.Get("Origin"); {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && origins[origin]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			setIfNotEmpty(h, "Access-Control-Allow-Methods", methods)
			setIfNotEmpty(h, "Access-Control-Allow-Headers", headers)
			setIfNotEmpty(h, "Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setIfNotEmpty(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
