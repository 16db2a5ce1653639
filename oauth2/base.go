// Package oauth2 provides the federation adapters for the Secrets app: one
// Provider per third-party identity source, all sharing the same redirect and
// callback machinery. The adapters trust the assertion delivered by the
// provider library; signature verification is the provider's job, not ours.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// HandleAssertionFunc receives a completed provider assertion: the
// provider-assigned subject id plus the raw userinfo payload. Implementations
// resolve or create the local user record and bind a session. The adapter has
// already handled every failure path; this is only called on success.
type HandleAssertionFunc func(provider, subjectID string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

const stateCookieName = "oauthstate"

// Provider is one federation adapter. Construct via NewGoogle, NewGithub,
// NewFacebook or NewTwitter rather than directly.
type Provider struct {
	// Name is the provider key ("google", "github", ...) used both in
	// routes and as the providerIds namespace in the store.
	Name string

	Config oauth2.Config

	// UserInfoURL is where the user profile is fetched from after the code
	// exchange. Overridable for testing.
	UserInfoURL string

	// AuthFailureURL is where every failure routes to. Defaults to
	// "/login" - a failed federation never surfaces as an error page.
	AuthFailureURL string

	// HandleAssertion is called on success.
	HandleAssertion HandleAssertionFunc

	// HTTPClient overrides the client used for exchange and userinfo
	// calls. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// ExtractSubject pulls the subject id out of the userinfo payload.
	// Defaults to reading the top-level "id" field.
	ExtractSubject func(userInfo map[string]any) (string, error)
}

// Redirect starts the flow: set the CSRF state cookie and send the user to
// the provider's consent page.
func (p *Provider) Redirect(w http.ResponseWriter, r *http.Request) {
	state := generateStateCookie(w)
	http.Redirect(w, r, p.Config.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow: check state, exchange the code, fetch the
// userinfo, extract the subject id and hand off. Any failure - provider
// rejection, network trouble, malformed assertion - logs server-side and
// routes back to the anonymous login entry point.
func (p *Provider) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, _ := r.Cookie(stateCookieName)
	if stateCookie == nil || r.FormValue("state") != stateCookie.Value {
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, MaxAge: -1, Path: "/"})
		slog.Info("oauth state mismatch", "provider", p.Name)
		p.fail(w, r)
		return
	}

	ctx := r.Context()
	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}

	token, err := p.Config.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		slog.Info("oauth code exchange failed", "provider", p.Name, "err", err)
		p.fail(w, r)
		return
	}

	userInfo, err := p.fetchUserInfo(token)
	if err != nil {
		slog.Info("oauth userinfo fetch failed", "provider", p.Name, "err", err)
		p.fail(w, r)
		return
	}

	subjectID, err := p.subjectID(userInfo)
	if err != nil {
		slog.Info("oauth assertion missing subject", "provider", p.Name, "err", err)
		p.fail(w, r)
		return
	}

	p.HandleAssertion(p.Name, subjectID, token, userInfo, w, r)
}

func (p *Provider) fail(w http.ResponseWriter, r *http.Request) {
	failureURL := p.AuthFailureURL
	if failureURL == "" {
		failureURL = "/login"
	}
	http.Redirect(w, r, failureURL, http.StatusTemporaryRedirect)
}

func (p *Provider) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading userinfo response: %w", err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("parsing userinfo: %w", err)
	}
	return userInfo, nil
}

func (p *Provider) subjectID(userInfo map[string]any) (string, error) {
	if p.ExtractSubject != nil {
		return p.ExtractSubject(userInfo)
	}
	return SubjectField(userInfo, "id")
}

// SubjectField reads a stable subject id from a userinfo payload, tolerating
// the numeric ids some providers return.
func SubjectField(userInfo map[string]any, field string) (string, error) {
	switch v := userInfo[field].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	}
	return "", fmt.Errorf("no usable %q field in userinfo", field)
}

func generateStateCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("generating oauth state", "err", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(10 * time.Minute),
		MaxAge:   600,
	})
	return state
}
