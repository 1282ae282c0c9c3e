package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/dgellow/popauth/internal/log"
)

// ErrNotFound is returned by backends when a key doesn't exist
var ErrNotFound = errors.New("key not found")

// Backend is a persistence medium holding raw string values.
// Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store namespaces keys of a Backend under a prefix so that several logical
// stores can share one medium. A Store without a backend accepts every call
// and reports every key as absent.
type Store struct {
	backend Backend
	prefix  string
}

// New creates a Store. backend may be nil.
func New(backend Backend, prefix string) *Store {
	return &Store{backend: backend, prefix: prefix}
}

// Available reports whether a persistence medium is attached.
func (s *Store) Available() bool {
	return s.backend != nil
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Set(ctx, s.key(key), value)
}

// Get returns the value under key. Read failures are logged and reported as absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if s.backend == nil {
		return "", false
	}

	value, err := s.backend.Get(ctx, s.key(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.LogWarnWithFields("storage", "Failed to read key", map[string]any{
				"key":   s.key(key),
				"error": err.Error(),
			})
		}
		return "", false
	}
	return value, true
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s.backend == nil {
		return nil
	}
	err := s.backend.Delete(ctx, s.key(key))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Clear deletes every key that starts with the store's prefix and nothing else.
func (s *Store) Clear(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if !strings.HasPrefix(key, s.prefix) {
			continue
		}
		if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
