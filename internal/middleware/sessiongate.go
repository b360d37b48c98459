package middleware

import (
	"log/slog"
	"net/http"

	"github.com/cmswift/authbroker/internal/session"
)

// SessionGate blocks proxied repository traffic when no session token is
// current, sending the browser back to the sign-in screen.
type SessionGate struct {
	session *session.Store
	logger  *slog.Logger
}

func NewSessionGate(sess *session.Store, logger *slog.Logger) *SessionGate {
	return &SessionGate{session: sess, logger: logger}
}

func (g *SessionGate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.session.Current() == nil {
			g.logger.Debug("no active session", "path", r.URL.Path)
			http.Redirect(w, r, "/auth/login", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}
