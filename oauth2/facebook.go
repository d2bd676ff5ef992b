package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/panyam/authkit"
)

// NewFacebook returns a Facebook social login provider. Empty credentials
// fall back to the OAUTH2_FACEBOOK_* environment variables.
func NewFacebook(clientId, clientSecret, callbackUrl string, handleAssertion HandleAssertionFunc) *Provider {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_FACEBOOK_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_FACEBOOK_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_FACEBOOK_CALLBACK_URL")
	}
	p := newProvider(authkit.ProviderFacebook, oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURL:  callbackUrl,
		Scopes:       []string{"email"},
		Endpoint:     facebook.Endpoint,
	}, handleAssertion)
	p.FetchProfile = fetchFacebookProfile
	return p
}

func fetchFacebookProfile(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*authkit.Assertion, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get("https://graph.facebook.com/me?fields=id,email,first_name,last_name,name")
	if err != nil {
		return nil, fmt.Errorf("failed getting profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api returned status %d", resp.StatusCode)
	}

	var profile struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed decoding profile: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("profile has no id")
	}
	return &authkit.Assertion{
		Provider:   authkit.ProviderFacebook,
		ExternalID: profile.ID,
		Email:      profile.Email,
		Name:       profile.Name,
	}, nil
}
