//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	"github.com/panyam/authkit"
)

// UserModel is the GORM model for users. The unique index on email backs
// the one-account-per-email rule at the database level; the provider id
// columns back the provider lookups of social login.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"size:255;uniqueIndex"`
	Name         string `gorm:"size:255"`
	PasswordHash string `gorm:"size:255"`
	Status       string `gorm:"size:32;index"`
	CreatedAt    time.Time
	CreatedIP    string `gorm:"size:64"`

	GoogleID    *string `gorm:"size:255;index"`
	VkontakteID *string `gorm:"size:255;index"`
	FacebookID  *string `gorm:"size:255;index"`
}

func (UserModel) TableName() string {
	return "authkit_users"
}

func (m *UserModel) ToUser() *authkit.User {
	u := &authkit.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Status:       authkit.Status(m.Status),
		CreatedAt:    m.CreatedAt,
		CreatedIP:    m.CreatedIP,
	}
	providers := map[string]*string{
		authkit.ProviderGoogle:    m.GoogleID,
		authkit.ProviderVkontakte: m.VkontakteID,
		authkit.ProviderFacebook:  m.FacebookID,
	}
	for provider, id := range providers {
		if id != nil && *id != "" {
			if u.ProviderIDs == nil {
				u.ProviderIDs = map[string]string{}
			}
			u.ProviderIDs[provider] = *id
		}
	}
	return u
}

func UserToModel(u *authkit.User) *UserModel {
	m := &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Status:       string(u.Status),
		CreatedAt:    u.CreatedAt,
		CreatedIP:    u.CreatedIP,
	}
	for provider, id := range u.ProviderIDs {
		id := id
		switch provider {
		case authkit.ProviderGoogle:
			m.GoogleID = &id
		case authkit.ProviderVkontakte:
			m.VkontakteID = &id
		case authkit.ProviderFacebook:
			m.FacebookID = &id
		}
	}
	return m
}

// providerColumn maps a provider name to its id column.
func providerColumn(provider string) (string, bool) {
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

// ConfirmationModel is the GORM model for confirmations.
type ConfirmationModel struct {
	Code      string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"size:64;index"`
	Action    string `gorm:"size:32;index"`
	Data      string `gorm:"size:255"`
	CreatedAt time.Time
}

func (ConfirmationModel) TableName() string {
	return "authkit_confirmations"
}

func (m *ConfirmationModel) ToConfirmation() *authkit.Confirmation {
	return &authkit.Confirmation{
		Code:      m.Code,
		UserID:    m.UserID,
		Action:    authkit.Action(m.Action),
		Data:      m.Data,
		CreatedAt: m.CreatedAt,
	}
}

func ConfirmationToModel(c *authkit.Confirmation) *ConfirmationModel {
	return &ConfirmationModel{
		Code:      c.Code,
		UserID:    c.UserID,
		Action:    string(c.Action),
		Data:      c.Data,
		CreatedAt: c.CreatedAt,
	}
}
