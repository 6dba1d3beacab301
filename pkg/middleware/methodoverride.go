package middleware

import (
	"net/http"
	"strings"
)

const (
	// MethodOverrideParam is the query parameter HTML forms use to tunnel
	// PUT and DELETE through POST.
	MethodOverrideParam = "_method"
	// MethodOverrideHeader is the header equivalent for API clients.
	MethodOverrideHeader = "X-HTTP-Method-Override"
)

var overridable = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// MethodOverride rewrites a POST carrying _method=PUT|PATCH|DELETE (query
// parameter or X-HTTP-Method-Override header) to that method before routing.
// Any other value leaves the request untouched. It must be mounted before the
// router resolves the route.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			m := r.URL.Query().Get(MethodOverrideParam)
			if m == "" {
				m = r.Header.Get(MethodOverrideHeader)
			}
			if m = strings.ToUpper(strings.TrimSpace(m)); overridable[m] {
				r = r.WithContext(r.Context())
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}
