package middleware

import "net/http"

// NoStore marks every response as uncacheable. Chat transcripts are private
// to a session and must never be stored by shared caches.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
