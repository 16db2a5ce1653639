package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// HandleUserFunc is called after a successful authentication, local or
// federated. Typical implementations bind a session and redirect.
type HandleUserFunc func(authtype, provider string, user *UserRecord, w http.ResponseWriter, r *http.Request)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{3,64}$`)

// LocalAuth handles username/password login and registration.
type LocalAuth struct {
	Authenticator *Authenticator

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// Form field names. Default to "username" and "password".
	UsernameField string
	PasswordField string

	// MinPasswordLength for signup. Defaults to 8.
	MinPasswordLength int

	// OnLoginError is called when login fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler

	// OnSignupError is called when signup fails. If nil, returns JSON error.
	OnSignupError AuthErrorHandler
}

// HandleLogin processes a login form post. A missing user and a wrong
// password produce byte-identical responses: nothing about the rejection may
// reveal which of the two occurred.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.Authenticator == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseCredentials(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), "username"), w, r)
		return
	}

	user, err := a.Authenticator.Authenticate(username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrMismatch):
			// Distinguishable here, deliberately not in the response.
			slog.Info("login rejected", "username", username, "reason", err)
			a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"), w, r)
		default:
			slog.Error("login failed against store", "err", err)
			http.Error(w, `{"error": "Service unavailable"}`, http.StatusInternalServerError)
		}
		return
	}

	a.HandleUser("local", "local", user, w, r)
}

// HandleSignup processes user registration. On success the user is logged in
// immediately.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Authenticator == nil {
		http.Error(w, `{"error": "Signup not configured"}`, http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseCredentials(r)
	if err != nil {
		a.handleSignupError(NewAuthError(ErrCodeMissingField, err.Error(), "username"), w, r)
		return
	}

	if authErr := a.validateSignup(username, password); authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	user, err := a.Authenticator.Register(username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateIdentity):
			// Actionable for the user, unlike a failed login.
			a.handleSignupError(NewAuthError(ErrCodeUsernameTaken, "Username is already taken, please choose another", "username"), w, r)
		default:
			slog.Error("signup failed against store", "err", err)
			http.Error(w, `{"error": "Service unavailable"}`, http.StatusInternalServerError)
		}
		return
	}

	a.HandleUser("local", "local", user, w, r)
}

func (a *LocalAuth) parseCredentials(r *http.Request) (username, password string, err error) {
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if u, ok := data[usernameField].(string); ok {
			username = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	} else {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}
	return username, password, nil
}

func (a *LocalAuth) validateSignup(username, password string) *AuthError {
	if !usernamePattern.MatchString(username) {
		return NewAuthError(ErrCodeInvalidUsername, "Username must be 3-64 characters (letters, numbers, @ . _ -)", "username")
	}
	minLen := a.MinPasswordLength
	if minLen == 0 {
		minLen = 8
	}
	if len(password) < minLen {
		return NewAuthError(ErrCodeWeakPassword, fmt.Sprintf("Password must be at least %d characters", minLen), "password")
	}
	return nil
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField {
		statusCode = http.StatusBadRequest
	}
	writeAuthError(w, err, statusCode)
}

func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	writeAuthError(w, err, http.StatusBadRequest)
}

func writeAuthError(w http.ResponseWriter, err *AuthError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(err)
}
