package web_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	xoauth2 "golang.org/x/oauth2"

	"github.com/secretsapp/secrets"
	"github.com/secretsapp/secrets/oauth2"
	"github.com/secretsapp/secrets/stores"
	"github.com/secretsapp/secrets/web"
)

// newTestApp wires a complete application against a temp-dir store and
// returns a running server plus a cookie-jar client that does not follow
// redirects, so each hop can be asserted.
func newTestApp(t *testing.T, providers ...*oauth2.Provider) (*httptest.Server, *http.Client, *stores.FSUserStore) {
	t.Helper()

	store := stores.NewFSUserStore(t.TempDir())
	auth := &secrets.Authenticator{
		Store: store,
		Verifier: &secrets.HashedVerifier{
			Hasher: &secrets.BcryptHasher{Cost: bcrypt.MinCost},
		},
	}
	binder := secrets.NewSessionBinder("test-jwt-secret")
	renderer, err := web.NewTemplateRenderer("")
	if err != nil {
		t.Fatalf("Failed to build renderer: %v", err)
	}

	app := web.New(store, auth, binder, renderer)
	for _, p := range providers {
		app.RegisterProvider(p)
	}
	server := httptest.NewServer(app.Handler())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Failed to build cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return server, client, store
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func post(t *testing.T, client *http.Client, url string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(url, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return string(data)
}

// TestFullUserJourney walks the whole local-auth story: register, land on the
// secrets page, submit a secret, see it listed, log out, get locked out again.
func TestFullUserJourney(t *testing.T) {
	server, client, _ := newTestApp(t)

	// Public pages render for anonymous visitors.
	for _, path := range []string{"/", "/login", "/register"} {
		resp := get(t, client, server.URL+path)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Protected pages bounce anonymous visitors to login.
	resp := get(t, client, server.URL+"/secrets")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected 302 for anonymous /secrets, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Fatalf("Expected redirect to login, got %q", loc)
	}
	resp.Body.Close()

	// Register and follow the redirect to the secrets page.
	resp = post(t, client, server.URL+"/register", url.Values{
		"username": {"alice"},
		"password": {"password123"},
	})
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/secrets" {
		t.Fatalf("Expected registration to land on /secrets, got %d -> %q. Body: %s",
			resp.StatusCode, resp.Header.Get("Location"), body(t, resp))
	}
	resp.Body.Close()

	resp = get(t, client, server.URL+"/secrets")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for logged-in /secrets, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Submit a secret and confirm it shows in the pooled listing.
	resp = post(t, client, server.URL+"/submit", url.Values{"secret": {"i write tests first"}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected 302 after submit, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = get(t, client, server.URL+"/secrets")
	if page := body(t, resp); !strings.Contains(page, "i write tests first") {
		t.Errorf("Expected submitted secret on the page, got:\n%s", page)
	}

	// Logout ends the session and protected pages lock again.
	resp = get(t, client, server.URL+"/logout")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("Expected logout redirect to /, got %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp.Body.Close()

	resp = get(t, client, server.URL+"/secrets")
	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302 after logout, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// TestLoginPage covers login form outcomes, including the requirement that a
// wrong password and an unknown username are indistinguishable to the caller.
func TestLoginPage(t *testing.T) {
	server, client, _ := newTestApp(t)

	resp := post(t, client, server.URL+"/register", url.Values{
		"username": {"alice"},
		"password": {"password123"},
	})
	resp.Body.Close()
	// Drop the session from registration; the login tests start anonymous.
	resp = get(t, client, server.URL+"/logout")
	resp.Body.Close()

	wrongPass := post(t, client, server.URL+"/login", url.Values{
		"username": {"alice"}, "password": {"wrongpassword"},
	})
	unknownUser := post(t, client, server.URL+"/login", url.Values{
		"username": {"ghost"}, "password": {"password123"},
	})

	if wrongPass.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", wrongPass.StatusCode)
	}
	if unknownUser.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unknown user, got %d", unknownUser.StatusCode)
	}
	if b1, b2 := body(t, wrongPass), body(t, unknownUser); b1 != b2 {
		t.Errorf("Rejection responses differ:\n%s\nvs\n%s", b1, b2)
	}

	resp = post(t, client, server.URL+"/login", url.Values{
		"username": {"alice"}, "password": {"password123"},
	})
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/secrets" {
		t.Errorf("Expected successful login to land on /secrets, got %d -> %q",
			resp.StatusCode, resp.Header.Get("Location"))
	}
	resp.Body.Close()
}

// TestDuplicateRegistration renders the register page again with an
// actionable message.
func TestDuplicateRegistration(t *testing.T) {
	server, client, _ := newTestApp(t)

	resp := post(t, client, server.URL+"/register", url.Values{
		"username": {"alice"}, "password": {"password123"},
	})
	resp.Body.Close()

	resp = post(t, client, server.URL+"/register", url.Values{
		"username": {"alice"}, "password": {"different456"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for duplicate username, got %d", resp.StatusCode)
	}
	if page := body(t, resp); !strings.Contains(page, "already taken") {
		t.Errorf("Expected duplicate-username message, got:\n%s", page)
	}
}

// TestSecretsPooledAcrossUsers checks that the secrets page shows everyone's
// secrets without attribution.
func TestSecretsPooledAcrossUsers(t *testing.T) {
	server, _, _ := newTestApp(t)

	register := func(username, secret string) {
		jar, _ := cookiejar.New(nil)
		client := &http.Client{Jar: jar, CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp := post(t, client, server.URL+"/register", url.Values{
			"username": {username}, "password": {"password123"},
		})
		resp.Body.Close()
		resp = post(t, client, server.URL+"/submit", url.Values{"secret": {secret}})
		resp.Body.Close()
	}

	register("alice", "alice was here")
	register("bob", "bob was here")

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp := post(t, client, server.URL+"/register", url.Values{
		"username": {"carol"}, "password": {"password123"},
	})
	resp.Body.Close()

	resp = get(t, client, server.URL+"/secrets")
	page := body(t, resp)
	for _, want := range []string{"alice was here", "bob was here"} {
		if !strings.Contains(page, want) {
			t.Errorf("Expected %q on the secrets page, got:\n%s", want, page)
		}
	}
	// The page never names the author of a secret.
	for _, username := range []string{"alice", "bob"} {
		if strings.Contains(page, ">"+username+"<") {
			t.Errorf("Secrets page should not attribute secrets to %q", username)
		}
	}
}

// newMockIdentityProvider serves fake token and userinfo endpoints and
// returns an adapter pointed at them.
func newMockIdentityProvider(t *testing.T, subjectID string) *oauth2.Provider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "mock-access-token", "token_type": "Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "` + subjectID + `", "name": "Mock User"}`))
	})
	idp := httptest.NewServer(mux)
	t.Cleanup(idp.Close)

	return &oauth2.Provider{
		Name: "mock",
		Config: xoauth2.Config{
			ClientID:     "test-client-id",
			ClientSecret: "test-client-secret",
			Endpoint: xoauth2.Endpoint{
				AuthURL:  idp.URL + "/authorize",
				TokenURL: idp.URL + "/token",
			},
		},
		UserInfoURL: idp.URL + "/userinfo",
		HTTPClient:  idp.Client(),
	}
}

// federatedLogin walks the redirect-callback handshake against the app and
// returns the final response of the callback.
func federatedLogin(t *testing.T, client *http.Client, serverURL string) *http.Response {
	t.Helper()

	resp := get(t, client, serverURL+"/auth/mock")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected 302 from provider redirect, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	authURL, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("Failed to parse auth URL: %v", err)
	}
	state := authURL.Query().Get("state")
	if state == "" {
		t.Fatal("Expected state parameter in auth URL")
	}

	return get(t, client, serverURL+"/auth/mock/secrets?code=mock-code&state="+state)
}

// TestFederatedLoginJourney drives a login through a mock identity provider,
// including the repeated-callback case: a second login through the same
// provider must resolve to the same record, never create a duplicate.
func TestFederatedLoginJourney(t *testing.T) {
	provider := newMockIdentityProvider(t, "sub-987")
	server, client, store := newTestApp(t, provider)

	resp := federatedLogin(t, client, server.URL)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/secrets" {
		t.Fatalf("Expected callback to land on /secrets, got %d -> %q",
			resp.StatusCode, resp.Header.Get("Location"))
	}
	resp.Body.Close()

	first, err := store.FindByProviderID("mock", "sub-987")
	if err != nil {
		t.Fatalf("Expected a record for the federated identity: %v", err)
	}

	// The session works like any other login.
	resp = get(t, client, server.URL+"/secrets")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for federated session, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Log out and come back through the provider again.
	resp = get(t, client, server.URL+"/logout")
	resp.Body.Close()

	resp = federatedLogin(t, client, server.URL)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/secrets" {
		t.Fatalf("Expected second callback to land on /secrets, got %d -> %q",
			resp.StatusCode, resp.Header.Get("Location"))
	}
	resp.Body.Close()

	second, err := store.FindByProviderID("mock", "sub-987")
	if err != nil {
		t.Fatalf("Expected the record to still exist: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Repeated federated login created a new record: %q vs %q", first.ID, second.ID)
	}
}

// TestFederatedCallbackFailure confirms a rejected assertion routes back to
// the login page rather than erroring.
func TestFederatedCallbackFailure(t *testing.T) {
	provider := newMockIdentityProvider(t, "sub-987")
	server, client, _ := newTestApp(t, provider)

	resp := get(t, client, server.URL+"/auth/mock/secrets?code=x&state=forged")
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("Expected 307 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}
	resp.Body.Close()
}
