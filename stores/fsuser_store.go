// Package stores provides a file-backed UserStore, suitable for development
// and tests. Each record is one JSON file; username and provider-id lookups
// go through small index files. For production use the gorm subpackage.
package stores

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/secretsapp/secrets"
)

// FSUserStore stores user records as JSON files under StoragePath. A single
// mutex serializes all operations, which is what makes
// FindOrCreateByProviderID atomic for this implementation.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

type indexEntry struct {
	UserID string `json:"user_id"`
}

func (s *FSUserStore) userPath(userID string) string {
	return filepath.Join(s.StoragePath, "users", userID+".json")
}

func (s *FSUserStore) usernamePath(username string) string {
	return filepath.Join(s.StoragePath, "usernames", url.PathEscape(username)+".json")
}

func (s *FSUserStore) providerPath(provider, externalID string) string {
	return filepath.Join(s.StoragePath, "providers", url.PathEscape(provider), url.PathEscape(externalID)+".json")
}

func (s *FSUserStore) CreateUser(username string, material secrets.CredentialMaterial) (*secrets.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readIndex(s.usernamePath(username)); err == nil {
		return nil, secrets.ErrDuplicateIdentity
	}

	now := time.Now()
	user := &secrets.UserRecord{
		ID:         secrets.NewUserID(),
		Username:   username,
		Credential: material,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.writeUser(user); err != nil {
		return nil, err
	}
	if err := s.writeIndex(s.usernamePath(username), user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *FSUserStore) FindByUsername(username string) (*secrets.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.readIndex(s.usernamePath(username))
	if err != nil {
		return nil, err
	}
	return s.readUser(entry.UserID)
}

func (s *FSUserStore) FindByProviderID(provider, externalID string) (*secrets.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.readIndex(s.providerPath(provider, externalID))
	if err != nil {
		return nil, err
	}
	return s.readUser(entry.UserID)
}

func (s *FSUserStore) FindOrCreateByProviderID(provider, externalID string, profile map[string]any) (*secrets.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, err := s.readIndex(s.providerPath(provider, externalID)); err == nil {
		return s.readUser(entry.UserID)
	}

	now := time.Now()
	user := &secrets.UserRecord{
		ID:          secrets.NewUserID(),
		ProviderIDs: map[string]string{provider: externalID},
		Profile:     profile,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.writeUser(user); err != nil {
		return nil, err
	}
	if err := s.writeIndex(s.providerPath(provider, externalID), user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *FSUserStore) AppendSecret(userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(userID)
	if err != nil {
		return err
	}
	user.Secrets = append(user.Secrets, secrets.Secret{Text: text, CreatedAt: time.Now()})
	user.UpdatedAt = time.Now()
	return s.writeUser(user)
}

func (s *FSUserStore) ListSecrets() ([]secrets.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usersDir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}

	var all []secrets.Secret
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		user, err := s.readUserFile(filepath.Join(usersDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		all = append(all, user.Secrets...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (s *FSUserStore) readUser(userID string) (*secrets.UserRecord, error) {
	return s.readUserFile(s.userPath(userID))
}

func (s *FSUserStore) readUserFile(path string) (*secrets.UserRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, secrets.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	var user secrets.UserRecord
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	return &user, nil
}

func (s *FSUserStore) writeUser(user *secrets.UserRecord) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	return s.writeFile(s.userPath(user.ID), data)
}

func (s *FSUserStore) readIndex(path string) (*indexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, secrets.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	var entry indexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	return &entry, nil
}

func (s *FSUserStore) writeIndex(path, userID string) error {
	data, err := json.Marshal(indexEntry{UserID: userID})
	if err != nil {
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	return s.writeFile(path, data)
}

// writeFile writes atomically: temp file in the target directory, then
// rename. A crash mid-write never leaves a half-written record behind.
func (s *FSUserStore) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", secrets.ErrStoreUnavailable, err)
	}
	return nil
}
