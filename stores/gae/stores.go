//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/panyam/authkit"
)

// Storage implements authkit.Storage using Google Cloud Datastore.
type Storage struct {
	client    *datastore.Client
	namespace string
}

// NewStorage creates a Datastore-backed Storage. An empty namespace uses
// the default namespace.
func NewStorage(client *datastore.Client, namespace string) *Storage {
	return &Storage{client: client, namespace: namespace}
}

func (s *Storage) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *Storage) newQuery(kind string) *datastore.Query {
	return datastore.NewQuery(kind).Namespace(s.namespace)
}

func (s *Storage) GetUser(ctx context.Context, f authkit.UserFilter) (*authkit.User, error) {
	if f.ID != "" {
		var entity UserEntity
		if err := s.client.Get(ctx, s.namespacedKey(KindUser, f.ID), &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil, authkit.ErrUserNotFound
			}
			return nil, err
		}
		return entity.ToUser(), nil
	}

	query := s.newQuery(KindUser)
	switch {
	case f.Email != "":
		query = query.FilterField("email", "=", f.Email)
	case f.Provider != "" && f.ProviderID != "":
		field, ok := providerField(f.Provider)
		if !ok {
			return nil, authkit.ErrUserNotFound
		}
		query = query.FilterField(field, "=", f.ProviderID)
	default:
		return nil, authkit.ErrUserNotFound
	}

	it := s.client.Run(ctx, query.Limit(1))
	var entity UserEntity
	if _, err := it.Next(&entity); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *Storage) CreateUser(ctx context.Context, u *authkit.User) (*authkit.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	key := s.namespacedKey(KindUser, u.ID)
	if _, err := s.client.Put(ctx, key, userToEntity(u, key)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Storage) UpdateUser(ctx context.Context, u *authkit.User, updates authkit.UserUpdates) error {
	key := s.namespacedKey(KindUser, u.ID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return authkit.ErrUserNotFound
			}
			return err
		}
		if updates.Email != nil {
			entity.Email = *updates.Email
		}
		if updates.Name != nil {
			entity.Name = *updates.Name
		}
		if updates.PasswordHash != nil {
			entity.PasswordHash = *updates.PasswordHash
		}
		if updates.Status != nil {
			entity.Status = string(*updates.Status)
		}
		if link := updates.ProviderLink; link != nil {
			switch link.Provider {
			case authkit.ProviderGoogle:
				entity.GoogleID = link.ExternalID
			case authkit.ProviderVkontakte:
				entity.VkontakteID = link.ExternalID
			case authkit.ProviderFacebook:
				entity.FacebookID = link.ExternalID
			default:
				return authkit.ErrAuthFailed
			}
		}
		_, err := tx.Put(key, &entity)
		return err
	})
	if err != nil {
		return err
	}
	applyUpdates(u, updates)
	return nil
}

func applyUpdates(u *authkit.User, updates authkit.UserUpdates) {
	if updates.Email != nil {
		u.Email = *updates.Email
	}
	if updates.Name != nil {
		u.Name = *updates.Name
	}
	if updates.PasswordHash != nil {
		u.PasswordHash = *updates.PasswordHash
	}
	if updates.Status != nil {
		u.Status = *updates.Status
	}
	if link := updates.ProviderLink; link != nil {
		if u.ProviderIDs == nil {
			u.ProviderIDs = map[string]string{}
		}
		u.ProviderIDs[link.Provider] = link.ExternalID
	}
}

func (s *Storage) DeleteUser(ctx context.Context, u *authkit.User) error {
	it := s.client.Run(ctx, s.newQuery(KindConfirmation).
		FilterField("user_id", "=", u.ID).KeysOnly())
	var keys []*datastore.Key
	for {
		key, err := it.Next(nil)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	if len(keys) > 0 {
		if err := s.client.DeleteMulti(ctx, keys); err != nil {
			return err
		}
	}
	return s.client.Delete(ctx, s.namespacedKey(KindUser, u.ID))
}

func (s *Storage) CreateConfirmation(ctx context.Context, u *authkit.User, action authkit.Action, data string) (*authkit.Confirmation, error) {
	for {
		code, err := authkit.GenerateCode(authkit.CodeLength)
		if err != nil {
			return nil, err
		}
		key := s.namespacedKey(KindConfirmation, code)
		var existing ConfirmationEntity
		err = s.client.Get(ctx, key, &existing)
		if err == nil {
			continue // collision, roll again
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, err
		}
		entity := &ConfirmationEntity{
			Key:       key,
			UserID:    u.ID,
			Action:    string(action),
			Data:      data,
			CreatedAt: time.Now(),
		}
		if _, err := s.client.Put(ctx, key, entity); err != nil {
			return nil, err
		}
		return entity.ToConfirmation(), nil
	}
}

func (s *Storage) GetConfirmation(ctx context.Context, f authkit.ConfirmationFilter) (*authkit.Confirmation, error) {
	if f.Code != "" {
		var entity ConfirmationEntity
		if err := s.client.Get(ctx, s.namespacedKey(KindConfirmation, f.Code), &entity); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return nil, authkit.ErrConfirmationNotFound
			}
			return nil, err
		}
		return entity.ToConfirmation(), nil
	}

	query := s.newQuery(KindConfirmation).
		FilterField("user_id", "=", f.UserID).
		FilterField("action", "=", string(f.Action)).
		Limit(1)
	it := s.client.Run(ctx, query)
	var entity ConfirmationEntity
	if _, err := it.Next(&entity); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, authkit.ErrConfirmationNotFound
		}
		return nil, err
	}
	return entity.ToConfirmation(), nil
}

func (s *Storage) DeleteConfirmation(ctx context.Context, c *authkit.Confirmation) error {
	return s.client.Delete(ctx, s.namespacedKey(KindConfirmation, c.Code))
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
