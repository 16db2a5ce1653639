package secrets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Session variable under which the authenticated user id is stored.
const sessionUserKey = "loggedInUserId"

// SessionBinder turns a successful verification into a durable identity and
// resolves it back on later requests. Server-side state lives in an scs
// session; a signed JWT is issued alongside so API callers can present a
// bearer token instead of a cookie.
type SessionBinder struct {
	Session *scs.SessionManager

	JWTSecretKey string
	JWTIssuer    string

	// AuthTokenCookieName is the cookie carrying the signed JWT.
	// Defaults to "SecretsAuthToken".
	AuthTokenCookieName string

	// SessionTimeout bounds both the scs session lifetime and the JWT
	// cookie expiry. Defaults to 24 hours.
	SessionTimeout time.Duration
}

// NewSessionBinder builds a binder with an in-memory scs session manager.
// Swap Session.Store for a durable implementation (stores/gorm) in
// production.
func NewSessionBinder(jwtSecretKey string) *SessionBinder {
	b := &SessionBinder{
		Session:      scs.New(),
		JWTSecretKey: jwtSecretKey,
	}
	return b.EnsureDefaults()
}

// EnsureDefaults fills zero-valued fields with reasonable defaults.
func (b *SessionBinder) EnsureDefaults() *SessionBinder {
	if b.Session == nil {
		b.Session = scs.New()
	}
	if b.SessionTimeout <= 0 {
		b.SessionTimeout = 24 * time.Hour
	}
	if b.JWTIssuer == "" {
		b.JWTIssuer = "Secrets-Issuer"
	}
	if b.AuthTokenCookieName == "" {
		b.AuthTokenCookieName = "SecretsAuthToken"
	}
	b.Session.Lifetime = b.SessionTimeout
	return b
}

// Issue binds userID to the current session. The session token is renewed
// first so a pre-login token can never be replayed as an authenticated one.
// The context must have passed through Session.LoadAndSave.
func (b *SessionBinder) Issue(ctx context.Context, userID string) error {
	if err := b.Session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	b.Session.Put(ctx, sessionUserKey, userID)
	return nil
}

// Resolve returns the user id bound to the current session, or ok=false for
// anonymous or expired sessions. Absence is not an error: callers route
// anonymous requests to the login entry point.
func (b *SessionBinder) Resolve(ctx context.Context) (userID string, ok bool) {
	userID = b.Session.GetString(ctx, sessionUserKey)
	return userID, userID != ""
}

// Destroy ends the current session (logout).
func (b *SessionBinder) Destroy(ctx context.Context) error {
	return b.Session.Destroy(ctx)
}

// IssueAuthToken signs a short JWT for the user, for API access alongside
// the session cookie.
func (b *SessionBinder) IssueAuthToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iss": b.JWTIssuer,
		"iat": now.Unix(),
		"exp": now.Add(b.SessionTimeout).Unix(),
	})
	signed, err := token.SignedString([]byte(b.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("signing auth token: %w", err)
	}
	return signed, nil
}

// VerifyAuthToken parses and verifies a JWT issued by IssueAuthToken and
// returns the subject user id.
func (b *SessionBinder) VerifyAuthToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(b.JWTSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}

// SetAuthCookie writes the JWT cookie after a successful login.
func (b *SessionBinder) SetAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     b.AuthTokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(b.SessionTimeout),
		MaxAge:   int(b.SessionTimeout.Seconds()),
	})
}

// ClearAuthCookie removes the JWT cookie on logout.
func (b *SessionBinder) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:    b.AuthTokenCookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
}
