package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	bucket "github.com/rezkam/shopfloor/internal/storage"
)

// Store is a GCS-based implementation of storage.Bucket.
// All keys are stored below an optional object name prefix.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ bucket.Bucket = (*Store)(nil)

// NewStore creates a new GCS store.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName, prefix string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewStoreWithClient(client, bucketName, prefix), nil
}

// NewStoreWithClient creates a store over an existing client.
func NewStoreWithClient(client *storage.Client, bucketName, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucketName, prefix: prefix}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + key)
}

// Read downloads the object.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		// Use errors.Is to handle wrapped errors from GCS client
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", bucket.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Write uploads the object, replacing any previous version.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	return s.upload(ctx, s.object(key), key, data)
}

// Create uploads the object with a does-not-exist precondition.
func (s *Store) Create(ctx context.Context, key string, data []byte) error {
	obj := s.object(key).If(storage.Conditions{DoesNotExist: true})
	return s.upload(ctx, obj, key, data)
}

func (s *Store) upload(ctx context.Context, obj *storage.ObjectHandle, key string, data []byte) error {
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("%w: %s", bucket.ErrObjectExists, key)
		}
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// List returns keys below prefix. GCS lists object names in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix + prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, s.prefix))
	}
	return keys, nil
}

// Delete removes every object below the store's prefix. Used by tests.
func (s *Store) Delete(ctx context.Context) error {
	keys, err := s.List(ctx, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("failed to delete object %s: %w", key, err)
		}
	}
	return nil
}
