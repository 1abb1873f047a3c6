// Package storage defines the durable key/value store the session layer
// persists its entries to, so an authenticated session survives a
// process restart.
package storage

import "errors"

// ErrNotFound is returned by Get for keys that have never been written
// or have been deleted.
var ErrNotFound = errors.New("storage: key not found")

// Fixed entry keys. Both are written on login and cleared together on
// logout; the namespace prefix keeps them from colliding with anything
// else sharing the store.
const (
	TokenKey    = "kinnstay_token"
	IdentityKey = "kinnstay_user"
)

// Repo is the interface for durable key/value storage operations.
type Repo interface {
	// Set writes value under key, replacing any previous value
	Set(key string, value []byte) error

	// Get retrieves the value stored under key, or ErrNotFound
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error
	Delete(key string) error
}
