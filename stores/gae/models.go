//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	"github.com/panyam/authkit"
)

// Kind constants for Datastore entities
const (
	KindUser         = "User"
	KindConfirmation = "Confirmation"
)

// UserEntity is the Datastore representation of a user. Provider links
// are flattened into indexed fields so social login lookups stay simple
// equality queries.
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Email        string         `datastore:"email"`
	Name         string         `datastore:"name,noindex"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	Status       string         `datastore:"status"`
	CreatedAt    time.Time      `datastore:"created_at,noindex"`
	CreatedIP    string         `datastore:"created_ip,noindex"`

	GoogleID    string `datastore:"google_id"`
	VkontakteID string `datastore:"vkontakte_id"`
	FacebookID  string `datastore:"facebook_id"`

	// Extra holds any future profile fields as a JSON blob.
	Extra []byte `datastore:"extra,noindex"`
}

func (e *UserEntity) ToUser() *authkit.User {
	u := &authkit.User{
		ID:           e.Key.Name,
		Email:        e.Email,
		Name:         e.Name,
		PasswordHash: e.PasswordHash,
		Status:       authkit.Status(e.Status),
		CreatedAt:    e.CreatedAt,
		CreatedIP:    e.CreatedIP,
	}
	links := map[string]string{
		authkit.ProviderGoogle:    e.GoogleID,
		authkit.ProviderVkontakte: e.VkontakteID,
		authkit.ProviderFacebook:  e.FacebookID,
	}
	for provider, id := range links {
		if id != "" {
			if u.ProviderIDs == nil {
				u.ProviderIDs = map[string]string{}
			}
			u.ProviderIDs[provider] = id
		}
	}
	return u
}

func userToEntity(u *authkit.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:          key,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		CreatedIP:    u.CreatedIP,
		GoogleID:     u.ProviderID(authkit.ProviderGoogle),
		VkontakteID:  u.ProviderID(authkit.ProviderVkontakte),
		FacebookID:   u.ProviderID(authkit.ProviderFacebook),
	}
}

// providerField maps a provider name to its entity field.
func providerField(provider string) (string, bool) {
	switch provider {
	case authkit.ProviderGoogle:
		return "google_id", true
	case authkit.ProviderVkontakte:
		return "vkontakte_id", true
	case authkit.ProviderFacebook:
		return "facebook_id", true
	default:
		return "", false
	}
}

// ConfirmationEntity is the Datastore representation of a confirmation.
type ConfirmationEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	Action    string         `datastore:"action"`
	Data      string         `datastore:"data,noindex"`
	CreatedAt time.Time      `datastore:"created_at,noindex"`
}

func (e *ConfirmationEntity) ToConfirmation() *authkit.Confirmation {
	return &authkit.Confirmation{
		Code:      e.Key.Name,
		UserID:    e.UserID,
		Action:    authkit.Action(e.Action),
		Data:      e.Data,
		CreatedAt: e.CreatedAt,
	}
}
