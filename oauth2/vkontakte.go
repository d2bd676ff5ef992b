package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/vk"

	"github.com/panyam/authkit"
)

// NewVkontakte returns a Vkontakte social login provider. Empty
// credentials fall back to the OAUTH2_VKONTAKTE_* environment variables.
// The email address arrives as an extra on the access token, not from the
// profile API.
func NewVkontakte(clientId, clientSecret, callbackUrl string, handleAssertion HandleAssertionFunc) *Provider {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_VKONTAKTE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_VKONTAKTE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_VKONTAKTE_CALLBACK_URL")
	}
	p := newProvider(authkit.ProviderVkontakte, oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		RedirectURL:  callbackUrl,
		Scopes:       []string{"email"},
		Endpoint:     vk.Endpoint,
	}, handleAssertion)
	p.FetchProfile = fetchVkontakteProfile
	return p
}

func fetchVkontakteProfile(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*authkit.Assertion, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get("https://api.vk.com/method/users.get?v=5.131&access_token=" + token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed getting profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users.get returned status %d", resp.StatusCode)
	}

	var payload struct {
		Response []struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed decoding profile: %w", err)
	}
	if len(payload.Response) == 0 || payload.Response[0].ID == 0 {
		return nil, fmt.Errorf("profile has no id")
	}
	profile := payload.Response[0]

	email, _ := token.Extra("email").(string)
	name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	return &authkit.Assertion{
		Provider:   authkit.ProviderVkontakte,
		ExternalID: strconv.FormatInt(profile.ID, 10),
		Email:      email,
		Name:       name,
	}, nil
}
