package oauth2

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// NewFacebook builds the Facebook federation adapter. Empty credentials fall
// back to the OAUTH2_FACEBOOK_* environment variables.
func NewFacebook(clientID, clientSecret, callbackURL string, handleAssertion HandleAssertionFunc) *Provider {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_FACEBOOK_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_FACEBOOK_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_FACEBOOK_CALLBACK_URL")
	}

	return &Provider{
		Name: "facebook",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		UserInfoURL:     "https://graph.facebook.com/me?fields=id,name,email",
		HandleAssertion: handleAssertion,
	}
}
