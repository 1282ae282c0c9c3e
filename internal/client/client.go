package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/config"
	"github.com/dgellow/popauth/internal/idp"
	"github.com/dgellow/popauth/internal/log"
	"github.com/dgellow/popauth/internal/login"
	"github.com/dgellow/popauth/internal/popup"
	"github.com/dgellow/popauth/internal/session"
	"github.com/dgellow/popauth/internal/storage"
)

// Client is the command line side of the login flow: it owns local storage,
// the session store and the popup controller, and runs login attempts
// against the login service.
type Client struct {
	cfg      config.ClientConfig
	kv       *storage.Store
	sessions *session.Store
	popups   *popup.Controller
	endpoint *login.EndpointClient
	consent  login.Consent
	out      io.Writer
	closer   io.Closer
}

// Option customizes a Client
type Option func(*Client)

// WithConsent replaces the loopback consent flow
func WithConsent(c login.Consent) Option {
	return func(cl *Client) {
		cl.consent = c
	}
}

// WithBackend replaces the backend selected by POPAUTH_STORAGE
func WithBackend(b storage.Backend) Option {
	return func(cl *Client) {
		cl.kv = storage.New(b, cl.cfg.StoragePrefix)
	}
}

// New builds a Client from cfg and restores the persisted session. Notices
// and prompts are written to out.
func New(ctx context.Context, cfg config.ClientConfig, out io.Writer, opts ...Option) (*Client, error) {
	endpoint, err := login.NewEndpointClient(cfg.Endpoint, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      cfg,
		popups:   popup.NewController(popup.NewBrowserOpener(cfg.Browser)),
		endpoint: endpoint,
		out:      out,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.kv == nil {
		backend, closer, err := NewBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.kv = storage.New(backend, cfg.StoragePrefix)
		c.closer = closer
	}

	c.sessions, err = session.NewStore(c.kv)
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	c.sessions.Load(ctx)
	return c, nil
}

// NewBackend opens the storage backend named by cfg.Storage. The returned
// closer is nil when the backend holds no resources.
func NewBackend(ctx context.Context, cfg config.ClientConfig) (storage.Backend, io.Closer, error) {
	switch cfg.Storage {
	case config.StorageFile, "":
		backend, err := storage.NewFileBackend(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil
	case config.StorageMemory:
		return storage.NewMemoryBackend(), nil, nil
	case config.StorageFirestore:
		backend, err := storage.NewFirestoreBackend(ctx, cfg.FirestoreProject, cfg.FirestoreDatabase, cfg.FirestoreCollection)
		if err != nil {
			return nil, nil, err
		}
		return backend, backend, nil
	case config.StorageNone:
		log.LogWarnWithFields("client", "Running without persistent storage", nil)
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage %q", cfg.Storage)
	}
}

// Sessions exposes the session store
func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// Controller builds a login controller for strategy
func (c *Client) Controller(strategy auth.Strategy) (*login.Controller, error) {
	if _, err := auth.ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	clientID, err := c.cfg.ClientID(string(strategy))
	if err != nil {
		return nil, auth.Wrap(auth.KindConfig, "missing client id", err)
	}

	endpoint, scope, err := idp.ConsentEndpoint(strategy)
	if err != nil {
		return nil, auth.Wrap(auth.KindConfig, "unsupported strategy", err)
	}

	consent := c.consent
	if consent == nil {
		consent = &login.LoopbackConsent{
			Addr:     c.cfg.CallbackAddr,
			Endpoint: endpoint,
			Popups:   c.popups,
			Width:    c.cfg.PopupWidth,
			Height:   c.cfg.PopupHeight,
			Title:    "Sign in",
			Prompt:   c.out,
		}
	}

	return login.NewController(login.Options{
		Strategy: strategy,
		ClientID: clientID,
		Scope:    scope,
		Storage:  c.kv,
		Consent:  consent,
		Endpoint: c.endpoint,
		Reporter: c.sessions,
		Notifier: login.NewWriterNotifier(c.out),
	})
}

// Login runs one login attempt and waits for its outcome. Cancelling ctx
// abandons the attempt.
func (c *Client) Login(ctx context.Context, strategy auth.Strategy) (login.Outcome, error) {
	ctrl, err := c.Controller(strategy)
	if err != nil {
		return login.Outcome{}, err
	}

	attempt, err := ctrl.Start(ctx)
	if err != nil {
		return login.Outcome{}, err
	}

	<-attempt.Done()
	outcome, _ := attempt.Outcome()
	return outcome, nil
}

// WhoAmI returns the logged in user, if any
func (c *Client) WhoAmI() (*auth.Result, bool) {
	return c.sessions.AuthData()
}

// Logout forgets the logged in user. A pending login state belongs to the
// login controller and is left alone.
func (c *Client) Logout(ctx context.Context) {
	c.sessions.Logout(ctx)
}

// Reset removes every key under the configured prefix
func (c *Client) Reset(ctx context.Context) error {
	c.sessions.Logout(ctx)
	return c.kv.Clear(ctx)
}

// Close releases the storage backend
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
