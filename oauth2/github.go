package oauth2

import (
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// NewGithub builds the GitHub federation adapter. Empty credentials fall
// back to the OAUTH2_GITHUB_* environment variables.
func NewGithub(clientID, clientSecret, callbackURL string, handleAssertion HandleAssertionFunc) *Provider {
	if clientID == "" {
		clientID = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackURL == "" {
		callbackURL = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	return &Provider{
		Name: "github",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		// GitHub returns numeric ids; SubjectField handles the conversion.
		UserInfoURL:     "https://api.github.com/user",
		HandleAssertion: handleAssertion,
	}
}
