package tokenstore

import (
	"context"
	"errors"
)

const (
	// KeyAuthToken holds the opaque bearer token.
	KeyAuthToken = "authToken"

	// KeyCurrentUser holds the JSON encoded user profile.
	KeyCurrentUser = "currentUser"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("token store: key not found")

// Store is a durable key/value holder for session credentials.
// Implementations do no validation and must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	// Remove deletes a key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
