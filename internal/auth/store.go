package auth

import "errors"

// ErrCredentialNotFound is returned by a Store when no credential has
// been saved for the source.
var ErrCredentialNotFound = errors.New("credential not found")

// Store persists credentials across process restarts so a refreshed
// token survives without interactive login. The persistence format is
// the store's concern.
type Store interface {
	Load(sourceID string) (Credential, error)
	Save(cred Credential) error
}
