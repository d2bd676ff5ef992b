package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/panyam/authkit"
)

// NewGoogle returns a Google social login provider. Empty credentials
// fall back to the OAUTH2_GOOGLE_* environment variables.
func NewGoogle(clientId, clientSecret, callbackUrl string, handleAssertion HandleAssertionFunc) *Provider {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}
	p := newProvider(authkit.ProviderGoogle, oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURL:  callbackUrl,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}, handleAssertion)
	p.FetchProfile = fetchGoogleProfile
	return p
}

func fetchGoogleProfile(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*authkit.Assertion, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var profile struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed decoding user info: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("userinfo has no id")
	}
	return &authkit.Assertion{
		Provider:   authkit.ProviderGoogle,
		ExternalID: profile.ID,
		Email:      profile.Email,
		Name:       profile.Name,
	}, nil
}
