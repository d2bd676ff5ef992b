// Package stores provides a filesystem-backed authkit.Storage, storing
// users and confirmations as JSON files. It suits development, tests and
// small single-node deployments.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panyam/authkit"
)

// FSStorage stores users under <path>/users/<id>.json and confirmations
// under <path>/confirmations/<code>.json. A process-wide mutex keeps the
// read-modify-write operations consistent within one process.
type FSStorage struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSStorage(storagePath string) *FSStorage {
	return &FSStorage{StoragePath: storagePath}
}

func (s *FSStorage) userPath(id string) string {
	return filepath.Join(s.StoragePath, "users", id+".json")
}

func (s *FSStorage) confirmationPath(code string) string {
	return filepath.Join(s.StoragePath, "confirmations", code+".json")
}

func (s *FSStorage) GetUser(_ context.Context, f authkit.UserFilter) (*authkit.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getUser(f)
}

func (s *FSStorage) getUser(f authkit.UserFilter) (*authkit.User, error) {
	if f.ID != "" {
		return s.readUser(s.userPath(f.ID))
	}
	users, err := s.scanUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if f.Email != "" && u.Email == f.Email {
			return u, nil
		}
		if f.Provider != "" && f.ProviderID != "" && u.ProviderID(f.Provider) == f.ProviderID {
			return u, nil
		}
	}
	return nil, authkit.ErrUserNotFound
}

func (s *FSStorage) CreateUser(_ context.Context, u *authkit.User) (*authkit.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if err := s.writeUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *FSStorage) UpdateUser(_ context.Context, u *authkit.User, updates authkit.UserUpdates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.readUser(s.userPath(u.ID))
	if err != nil {
		return err
	}
	applyUpdates(stored, updates)
	applyUpdates(u, updates)
	return s.writeUser(stored)
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
	if updates.ProviderLink != nil {
		if u.ProviderIDs == nil {
			u.ProviderIDs = map[string]string{}
		}
		u.ProviderIDs[updates.ProviderLink.Provider] = updates.ProviderLink.ExternalID
	}
}

func (s *FSStorage) DeleteUser(_ context.Context, u *authkit.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	confirmations, err := s.scanConfirmations()
	if err != nil {
		return err
	}
	for _, c := range confirmations {
		if c.UserID == u.ID {
			if err := removeIfExists(s.confirmationPath(c.Code)); err != nil {
				return err
			}
		}
	}
	return removeIfExists(s.userPath(u.ID))
}

func (s *FSStorage) CreateConfirmation(_ context.Context, u *authkit.User, action authkit.Action, data string) (*authkit.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		code, err := authkit.GenerateCode(authkit.CodeLength)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(s.confirmationPath(code)); err == nil {
			continue // collision, roll again
		}
		c := &authkit.Confirmation{
			Code:      code,
			UserID:    u.ID,
			Action:    action,
			Data:      data,
			CreatedAt: time.Now(),
		}
		return c, s.writeConfirmation(c)
	}
}

func (s *FSStorage) GetConfirmation(_ context.Context, f authkit.ConfirmationFilter) (*authkit.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Code != "" {
		return s.readConfirmation(s.confirmationPath(f.Code))
	}
	confirmations, err := s.scanConfirmations()
	if err != nil {
		return nil, err
	}
	for _, c := range confirmations {
		if c.UserID == f.UserID && c.Action == f.Action {
			return c, nil
		}
	}
	return nil, authkit.ErrConfirmationNotFound
}

func (s *FSStorage) DeleteConfirmation(_ context.Context, c *authkit.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.confirmationPath(c.Code))
}

func (s *FSStorage) UserSessionID(u *authkit.User) string {
	return u.ID
}

func (s *FSStorage) UserIDFromString(v string) (string, error) {
	if v == "" {
		return "", authkit.ErrUserNotFound
	}
	return v, nil
}

func (s *FSStorage) readUser(path string) (*authkit.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, err
	}
	var u authkit.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *FSStorage) writeUser(u *authkit.User) error {
	path := s.userPath(u.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSStorage) readConfirmation(path string) (*authkit.Confirmation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, authkit.ErrConfirmationNotFound
		}
		return nil, err
	}
	var c authkit.Confirmation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *FSStorage) writeConfirmation(c *authkit.Confirmation) error {
	path := s.confirmationPath(c.Code)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *FSStorage) scanUsers() ([]*authkit.User, error) {
	dir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*authkit.User
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		u, err := s.readUser(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *FSStorage) scanConfirmations() ([]*authkit.Confirmation, error) {
	dir := filepath.Join(s.StoragePath, "confirmations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*authkit.Confirmation
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		c, err := s.readConfirmation(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeAtomicFile writes data to a file atomically by writing to a temp
// file first.
func writeAtomicFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
