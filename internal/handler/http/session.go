package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/yelpclone/directory/pkg/logger"
	"github.com/yelpclone/directory/pkg/middleware"
)

// SessionCookieName is the cookie carrying the chat session ID.
const SessionCookieName = "session_id"

// SessionConfig controls the session cookie.
type SessionConfig struct {
	// Secure marks the cookie HTTPS-only.
	Secure bool
	// MaxAge is the cookie lifetime in seconds. Zero makes it a browser
	// session cookie.
	MaxAge int
}

// Session reads the session_id cookie, issuing a fresh UUID when it is
// missing or malformed, and stores the ID in the request context. The
// request-scoped logger is rebuilt so log lines carry session_id.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				if parsed, perr := uuid.Parse(c.Value); perr == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   cfg.MaxAge,
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			r = r.WithContext(logger.WithSessionID(r.Context(), id))
			next.ServeHTTP(w, middleware.Refresh(r))
		})
	}
}

// SessionID returns the chat session ID stored by Session.
func SessionID(r *http.Request) string {
	return logger.SessionIDFromContext(r.Context())
}
