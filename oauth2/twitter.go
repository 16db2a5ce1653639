package oauth2

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// Twitter's OAuth2 endpoints (the v2 API); x/oauth2 has no canned endpoint
// for them.
var twitterEndpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

// NewTwitter builds the Twitter federation adapter. Empty credentials fall
// back to the OAUTH2_TWITTER_* environment variables.
func NewTwitter(clientID, clientSecret, callbackURL string, handleAssertion HandleAssertionFunc) *Provider {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_TWITTER_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_TWITTER_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_TWITTER_CALLBACK_URL")
	}

	return &Provider{
		Name: "twitter",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"users.read", "tweet.read"},
			Endpoint:     twitterEndpoint,
		},
		UserInfoURL:     "https://api.twitter.com/2/users/me",
		HandleAssertion: handleAssertion,
		// The v2 API nests the user object under "data".
		ExtractSubject: func(userInfo map[string]any) (string, error) {
			data, ok := userInfo["data"].(map[string]any)
			if !ok {
				return "", fmt.Errorf("no data object in twitter userinfo")
			}
			return SubjectField(data, "id")
		},
	}
}
