package oauth2

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// NewGoogle builds the Google federation adapter. Empty credentials fall
// back to the OAUTH2_GOOGLE_* environment variables.
func NewGoogle(clientID, clientSecret, callbackURL string, handleAssertion HandleAssertionFunc) *Provider {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	return &Provider{
		Name: "google",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL:     "https://www.googleapis.com/oauth2/v2/userinfo",
		HandleAssertion: handleAssertion,
	}
}
