//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panyam/authkit"
)

// AutoMigrate runs database migrations for the authkit tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&ConfirmationModel{},
	)
}

// Storage implements authkit.Storage on a relational database via GORM.
type Storage struct {
	db *gorm.DB
}

func NewStorage(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) GetUser(ctx context.Context, f authkit.UserFilter) (*authkit.User, error) {
	query := s.db.WithContext(ctx)
	switch {
	case f.ID != "":
		query = query.Where("id = ?", f.ID)
	case f.Email != "":
		query = query.Where("email = ?", f.Email)
	case f.Provider != "" && f.ProviderID != "":
		column, ok := providerColumn(f.Provider)
		if !ok {
			return nil, authkit.ErrUserNotFound
		}
		query = query.Where(column+" = ?", f.ProviderID)
	default:
		return nil, authkit.ErrUserNotFound
	}

	var model UserModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *Storage) CreateUser(ctx context.Context, u *authkit.User) (*authkit.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	model := UserToModel(u)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Storage) UpdateUser(ctx context.Context, u *authkit.User, updates authkit.UserUpdates) error {
	values := map[string]any{}
	if updates.Email != nil {
		values["email"] = *updates.Email
		u.Email = *updates.Email
	}
	if updates.Name != nil {
		values["name"] = *updates.Name
		u.Name = *updates.Name
	}
	if updates.PasswordHash != nil {
		values["password_hash"] = *updates.PasswordHash
		u.PasswordHash = *updates.PasswordHash
	}
	if updates.Status != nil {
		values["status"] = string(*updates.Status)
		u.Status = *updates.Status
	}
	if updates.ProviderLink != nil {
		column, ok := providerColumn(updates.ProviderLink.Provider)
		if !ok {
			return authkit.ErrAuthFailed
		}
		values[column] = updates.ProviderLink.ExternalID
		if u.ProviderIDs == nil {
			u.ProviderIDs = map[string]string{}
		}
		u.ProviderIDs[updates.ProviderLink.Provider] = updates.ProviderLink.ExternalID
	}
	if len(values) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", u.ID).
		Updates(values).Error
}

func (s *Storage) DeleteUser(ctx context.Context, u *authkit.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", u.ID).Delete(&ConfirmationModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", u.ID).Delete(&UserModel{}).Error
	})
}

func (s *Storage) CreateConfirmation(ctx context.Context, u *authkit.User, action authkit.Action, data string) (*authkit.Confirmation, error) {
	for {
		code, err := authkit.GenerateCode(authkit.CodeLength)
		if err != nil {
			return nil, err
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&ConfirmationModel{}).
			Where("code = ?", code).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue // collision, roll again
		}
		c := &authkit.Confirmation{
			Code:      code,
			UserID:    u.ID,
			Action:    action,
			Data:      data,
			CreatedAt: time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(ConfirmationToModel(c)).Error; err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (s *Storage) GetConfirmation(ctx context.Context, f authkit.ConfirmationFilter) (*authkit.Confirmation, error) {
	query := s.db.WithContext(ctx)
	switch {
	case f.Code != "":
		query = query.Where("code = ?", f.Code)
	case f.UserID != "":
		query = query.Where("user_id = ? AND action = ?", f.UserID, string(f.Action))
	default:
		return nil, authkit.ErrConfirmationNotFound
	}

	var model ConfirmationModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authkit.ErrConfirmationNotFound
		}
		return nil, err
	}
	return model.ToConfirmation(), nil
}

func (s *Storage) DeleteConfirmation(ctx context.Context, c *authkit.Confirmation) error {
	return s.db.WithContext(ctx).Where("code = ?", c.Code).Delete(&ConfirmationModel{}).Error
}

func (s *Storage) UserSessionID(u *authkit.User) string {
	return u.ID
}

func (s *Storage) UserIDFromString(v string) (string, error) {
	if v == "" {
		return "", authkit.ErrUserNotFound
	}
	return v, nil
}
