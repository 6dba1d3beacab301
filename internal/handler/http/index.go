package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yelpclone/directory/pkg/httputil"
)

// Endpoint is one entry of the service index.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// indexHandler serves GET / with the registered application routes. Debug
// and metrics routes are left out.
func indexHandler(serviceName string, routes chi.Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var endpoints []Endpoint
		_ = chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if strings.HasPrefix(route, "/debug") || route == "/metrics" {
				return nil
			}
			if len(route) > 1 {
				route = strings.TrimSuffix(route, "/")
			}
			endpoints = append(endpoints, Endpoint{Method: method, Path: route})
			return nil
		})
		slices.SortFunc(endpoints, func(a, b Endpoint) int {
			if c := strings.Compare(a.Path, b.Path); c != 0 {
				return c
			}
			return strings.Compare(a.Method, b.Method)
		})

		httputil.WriteData(w, http.StatusOK, map[string]any{
			"service":   serviceName,
			"endpoints": endpoints,
		})
	}
}
