package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwain/inboxpilot/internal/auth"
)

// FileStore persists one credential per source as a JSON file under the
// user cache directory. It implements auth.Store.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed credential store rooted at dir.
// An empty dir means the default cache directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = CacheDir()
	}
	return &FileStore{dir: dir}
}

// Load reads the credential for the source, returning
// auth.ErrCredentialNotFound if no file exists.
func (s *FileStore) Load(sourceID string) (auth.Credential, error) {
	data, err := os.ReadFile(s.path(sourceID))
	if err != nil {
		if os.IsNotExist(err) {
			return auth.Credential{}, auth.ErrCredentialNotFound
		}
		return auth.Credential{}, fmt.Errorf("reading token file: %w", err)
	}

	var cred auth.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return auth.Credential{}, fmt.Errorf("invalid token file for %s: %w", sourceID, err)
	}
	cred.SourceID = sourceID
	return cred, nil
}

// Save writes the credential atomically with owner-only permissions.
func (s *FileStore) Save(cred auth.Credential) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	path := s.path(cred.SourceID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Has reports whether a credential file exists for the source.
func (s *FileStore) Has(sourceID string) bool {
	_, err := os.Stat(s.path(sourceID))
	return err == nil
}

func (s *FileStore) path(sourceID string) string {
	// source IDs look like "gmail:work"; colons are awkward in filenames
	name := strings.ReplaceAll(sourceID, ":", ".")
	return filepath.Join(s.dir, "google."+name+".token")
}
