package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userIDContextKey struct{}

// Middleware extracts the logged-in user for downstream handlers and, for
// protected routes, sends anonymous callers to the login page instead of
// erroring.
type Middleware struct {
	Binder *SessionBinder

	// LoginURL is where anonymous requests to protected routes go.
	// Defaults to "/login".
	LoginURL string

	// CallbackURLParam names the query parameter carrying the original URL
	// so login can bounce back. Defaults to "callbackURL".
	CallbackURLParam string
}

// EnsureReasonableDefaults fills unset config values.
func (m *Middleware) EnsureReasonableDefaults() {
	if m.LoginURL == "" {
		m.LoginURL = "/login"
	}
	if m.CallbackURLParam == "" {
		m.CallbackURLParam = "callbackURL"
	}
}

// GetLoggedInUserId resolves the caller's identity: request context first,
// then the session, then a bearer JWT from the Authorization header or the
// auth cookie. Empty string means anonymous.
func (m *Middleware) GetLoggedInUserId(r *http.Request) string {
	if v, ok := r.Context().Value(userIDContextKey{}).(string); ok && v != "" {
		return v
	}

	if userID, ok := m.Binder.Resolve(r.Context()); ok {
		return userID
	}

	// Fall back to the JWT for API callers without a session.
	tokens := r.Header.Values("Authorization")
	for _, cookie := range r.Cookies() {
		if cookie.Name == m.Binder.AuthTokenCookieName && len(cookie.Value) > 0 {
			tokens = append(tokens, cookie.Value)
		}
	}
	for _, token := range tokens {
		token = strings.TrimPrefix(token, "Bearer ")
		userID, err := m.Binder.VerifyAuthToken(token)
		if err == nil && userID != "" {
			return userID
		} else if err != nil {
			slog.Debug("ignoring unverifiable auth token", "err", err)
		}
	}
	return ""
}

// ExtractUser loads the logged-in user id (if any) into the request context.
// It never redirects; use RequireUser to also enforce a login.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.withUserID(r, m.GetLoggedInUserId(r)))
	})
}

// RequireUser guards a protected route. An anonymous caller is redirected to
// the login page with the original URL in the callback parameter - absence
// of a session routes to login handling, never to an error.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.GetLoggedInUserId(r)
		if userID == "" {
			encoded := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
			http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", m.LoginURL, m.CallbackURLParam, encoded), http.StatusFound)
			return
		}
		next.ServeHTTP(w, m.withUserID(r, userID))
	})
}

func (m *Middleware) withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDContextKey{}, userID))
}

// LoggedInUserId returns the user id placed in the request context by
// ExtractUser/RequireUser, or "" for anonymous requests.
func LoggedInUserId(r *http.Request) string {
	if v, ok := r.Context().Value(userIDContextKey{}).(string); ok {
		return v
	}
	return ""
}
