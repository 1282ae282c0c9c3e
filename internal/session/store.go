// Package session holds the client-side authentication state and mirrors it
// to persisted storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/log"
	"github.com/dgellow/popauth/internal/storage"
)

// AuthDataKey is the storage key of the persisted authentication result.
// No other component reads or writes it.
const AuthDataKey = "authData"

// State is a snapshot of the session
type State struct {
	Result    *auth.Result
	IsLoading bool
}

// Store owns the current authentication result. It starts loading and
// becomes ready after Load.
type Store struct {
	kv *storage.Store

	mu      sync.RWMutex
	result  *auth.Result
	loading bool

	loadOnce sync.Once
	ready    chan struct{}

	subsMu sync.Mutex
	nextID int
	subs   map[int]chan State
}

// NewStore creates a session store backed by kv
func NewStore(kv *storage.Store) (*Store, error) {
	if kv == nil {
		return nil, errors.New("session store requires a key/value store")
	}
	return &Store{
		kv:      kv,
		loading: true,
		ready:   make(chan struct{}),
		subs:    make(map[int]chan State),
	}, nil
}

// Load restores the persisted result. Unreadable or corrupt data is logged
// and treated as no result. Only the first call does anything.
func (s *Store) Load(ctx context.Context) {
	s.loadOnce.Do(func() {
		restored := s.restore(ctx)

		s.mu.Lock()
		s.result = restored
		s.loading = false
		s.mu.Unlock()

		close(s.ready)
		s.notify()
	})
}

func (s *Store) restore(ctx context.Context) *auth.Result {
	raw, ok := s.kv.Get(ctx, AuthDataKey)
	if !ok {
		return nil
	}

	var result auth.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.LogErrorWithFields("session", "Failed to parse persisted auth data", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if err := result.Validate(); err != nil {
		log.LogErrorWithFields("session", "Ignoring invalid persisted auth data", map[string]any{
			"error": err.Error(),
		})
		return nil
	}

	log.LogDebugWithFields("session", "Restored auth data", map[string]any{
		"strategy": result.Strategy,
	})
	return &result
}

// Ready is closed once Load has completed
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsLoading reports whether Load has not completed yet. While loading, an
// absent result does not mean the user is logged out.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// AuthData returns a copy of the current result
func (s *Store) AuthData() (*auth.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil, false
	}
	r := *s.result
	return &r, true
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{IsLoading: s.loading}
	if s.result != nil {
		r := *s.result
		st.Result = &r
	}
	return st
}

// SetAuthData replaces the current result and persists it. A nil result
// deletes the persisted record. Persistence failures are logged.
func (s *Store) SetAuthData(ctx context.Context, result *auth.Result) {
	var stored *auth.Result
	if result != nil {
		r := *result
		stored = &r
	}

	s.mu.Lock()
	s.result = stored
	s.mu.Unlock()
	s.notify()

	s.persist(ctx, stored)
}

func (s *Store) persist(ctx context.Context, result *auth.Result) {
	if result == nil {
		if err := s.kv.Remove(ctx, AuthDataKey); err != nil {
			log.LogErrorWithFields("session", "Failed to remove auth data", map[string]any{
				"error": err.Error(),
			})
		}
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.LogErrorWithFields("session", "Failed to encode auth data", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if err := s.kv.Set(ctx, AuthDataKey, string(data)); err != nil {
		log.LogErrorWithFields("session", "Failed to persist auth data", map[string]any{
			"error": err.Error(),
		})
	}
}

// Logout clears the current result
func (s *Store) Logout(ctx context.Context) {
	s.SetAuthData(ctx, nil)
}

// Report records the outcome of a login attempt. A nil result is a failed
// attempt and leaves the current session untouched.
func (s *Store) Report(ctx context.Context, result *auth.Result) {
	if result == nil {
		return
	}
	s.SetAuthData(ctx, result)
}

// Subscribe returns a channel receiving the latest state after each change.
// Slow readers only see the most recent state.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify() {
	st := s.Snapshot()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
