package gateway

import (
	"net/http"
	"time"

	"github.com/harun/agentgate/pkg/session"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// SessionCookie names the cookie binding a browser to its thread
const SessionCookie = "agentgate_session"

// sessionID returns the caller's session ID, if any. A cookie value the
// thread store would reject counts as no session.
func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || session.ValidateID(c.Value) != nil {
		return "", false
	}
	return c.Value, true
}

// ensureSession returns the caller's session ID, issuing a cookie first
// when the request carries none
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := sessionID(r); ok {
		return id, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if s.sessionTTL > 0 {
		cookie.MaxAge = int(s.sessionTTL / time.Second)
	}
	http.SetCookie(w, cookie)

	return id, nil
}
