package secrets_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/secretsapp/secrets"
	"github.com/secretsapp/secrets/stores"
	"golang.org/x/crypto/bcrypt"
)

// setupLocalAuth creates a temporary storage directory and a fully wired
// LocalAuth for handler tests.
func setupLocalAuth(t *testing.T) (*secrets.LocalAuth, *secrets.Authenticator, string) {
	tmpDir, err := os.MkdirTemp("", "secrets-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	auth := &secrets.Authenticator{
		Store:    stores.NewFSUserStore(tmpDir),
		Verifier: newTestVerifier(t, secrets.StrategyBcrypt),
	}
	localAuth := &secrets.LocalAuth{
		Authenticator: auth,
		HandleUser: func(authtype, provider string, user *secrets.UserRecord, w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}
	return localAuth, auth, tmpDir
}

func cleanup(t *testing.T, tmpDir string) {
	if err := os.RemoveAll(tmpDir); err != nil {
		t.Logf("Warning: failed to cleanup temp dir: %v", err)
	}
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// TestSignupFlow tests user registration through the form handler.
func TestSignupFlow(t *testing.T) {
	localAuth, _, tmpDir := setupLocalAuth(t)
	defer cleanup(t, tmpDir)

	tests := []struct {
		name           string
		formData       map[string]string
		expectedStatus int
		checkError     string
	}{
		{
			name: "successful signup",
			formData: map[string]string{
				"username": "testuser",
				"password": "password123",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "duplicate username",
			formData: map[string]string{
				"username": "testuser",
				"password": "password456",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "already taken",
		},
		{
			name: "weak password",
			formData: map[string]string{
				"username": "testuser2",
				"password": "pass",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "at least 8 characters",
		},
		{
			name: "username too short",
			formData: map[string]string{
				"username": "ab",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "Username",
		},
		{
			name: "missing password",
			formData: map[string]string{
				"username": "testuser3",
			},
			expectedStatus: http.StatusBadRequest,
			checkError:     "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range tt.formData {
				form.Set(k, v)
			}
			rr := postForm(localAuth.HandleSignup, "/register", form)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.checkError != "" && !strings.Contains(rr.Body.String(), tt.checkError) {
				t.Errorf("Expected error containing %q, got: %s", tt.checkError, rr.Body.String())
			}
		})
	}
}

// TestLoginFlow tests local authentication through the form handler.
func TestLoginFlow(t *testing.T) {
	localAuth, auth, tmpDir := setupLocalAuth(t)
	defer cleanup(t, tmpDir)

	if _, err := auth.Register("loginuser", "password123"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	tests := []struct {
		name           string
		username       string
		password       string
		expectedStatus int
	}{
		{
			name:           "successful login",
			username:       "loginuser",
			password:       "password123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			username:       "loginuser",
			password:       "wrongpassword",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "non-existent user",
			username:       "nosuchuser",
			password:       "password123",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			form.Set("username", tt.username)
			form.Set("password", tt.password)
			rr := postForm(localAuth.HandleLogin, "/login", form)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

// TestLoginRejectionIndistinguishable verifies that a wrong password and an
// unknown username produce byte-identical responses. An attacker probing the
// login endpoint must not be able to enumerate usernames.
func TestLoginRejectionIndistinguishable(t *testing.T) {
	localAuth, auth, tmpDir := setupLocalAuth(t)
	defer cleanup(t, tmpDir)

	if _, err := auth.Register("realuser", "password123"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	wrongPass := url.Values{"username": {"realuser"}, "password": {"wrongpassword"}}
	unknownUser := url.Values{"username": {"ghostuser"}, "password": {"password123"}}

	rr1 := postForm(localAuth.HandleLogin, "/login", wrongPass)
	rr2 := postForm(localAuth.HandleLogin, "/login", unknownUser)

	if rr1.Code != rr2.Code {
		t.Errorf("Status codes differ: %d vs %d", rr1.Code, rr2.Code)
	}
	if rr1.Body.String() != rr2.Body.String() {
		t.Errorf("Response bodies differ:\n%s\nvs\n%s", rr1.Body.String(), rr2.Body.String())
	}
}

// TestLoginJSONBody tests login with a JSON request body instead of a form.
func TestLoginJSONBody(t *testing.T) {
	localAuth, auth, tmpDir := setupLocalAuth(t)
	defer cleanup(t, tmpDir)

	if _, err := auth.Register("jsonuser", "password123"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	body := `{"username": "jsonuser", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	localAuth.HandleLogin(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}
}

// TestAuthenticateErrorCodes verifies that the programmatic API keeps a
// missing user and a failed verification distinguishable even though the HTTP
// surface does not.
func TestAuthenticateErrorCodes(t *testing.T) {
	_, auth, tmpDir := setupLocalAuth(t)
	defer cleanup(t, tmpDir)

	if _, err := auth.Register("alice", "password123"); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	if _, err := auth.Authenticate("nosuchuser", "password123"); !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got: %v", err)
	}
	if _, err := auth.Authenticate("alice", "wrongpassword"); !errors.Is(err, secrets.ErrMismatch) {
		t.Errorf("Expected ErrMismatch for wrong password, got: %v", err)
	}
	if user, err := auth.Authenticate("alice", "password123"); err != nil {
		t.Errorf("Expected success, got: %v", err)
	} else if user.Username != "alice" {
		t.Errorf("Expected username alice, got %q", user.Username)
	}
}

// TestAuthenticateFederatedOnlyRecord checks that a record with no local
// credential, as federation providers create, rejects password logins as a
// mismatch rather than erroring.
func TestAuthenticateFederatedOnlyRecord(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "secrets-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer cleanup(t, tmpDir)

	store := stores.NewFSUserStore(tmpDir)
	auth := &secrets.Authenticator{
		Store: store,
		Verifier: &secrets.HashedVerifier{
			Hasher: &secrets.BcryptHasher{Cost: bcrypt.MinCost},
		},
	}

	if _, err := store.CreateUser("feduser", secrets.CredentialMaterial{}); err != nil {
		t.Fatalf("Failed to create credential-less user: %v", err)
	}

	if _, err := auth.Authenticate("feduser", "anything"); !errors.Is(err, secrets.ErrMismatch) {
		t.Errorf("Expected ErrMismatch for credential-less record, got: %v", err)
	}
}
