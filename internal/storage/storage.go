// Package storage defines the object bucket abstraction behind the document store.
// Implementations live in the fs and gcs subpackages.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound indicates no object exists under the key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists indicates Create found an object already stored under the key.
	ErrObjectExists = errors.New("object already exists")
)

// Bucket is a flat key/value object store. Keys use forward slashes.
type Bucket interface {
	// Read returns the object's bytes or ErrObjectNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write creates or replaces the object.
	Write(ctx context.Context, key string, data []byte) error

	// Create stores the object only if the key is unused, otherwise ErrObjectExists.
	Create(ctx context.Context, key string, data []byte) error

	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
