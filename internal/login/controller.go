// Package login drives a single popup login attempt from the client side:
// it issues the anti-forgery state, runs the provider consent step, checks
// the returned state, calls the login endpoint and reports the outcome.
package login

import (
	"context"
	"errors"
	"sync"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/crypto"
	"github.com/dgellow/popauth/internal/log"
	"github.com/dgellow/popauth/internal/storage"
)

// StateKey is the storage key of the pending anti-forgery token.
// No other component reads or writes it.
const StateKey = "state"

// Notice texts shown to the user
const (
	SuccessNotice = "You are now logged in"
	FailureNotice = "Login failed"
)

// ErrInProgress is returned by Start while an attempt is running
var ErrInProgress = errors.New("login already in progress")

// Reporter receives the outcome of every attempt: the result on success,
// nil on failure.
type Reporter interface {
	Report(ctx context.Context, result *auth.Result)
}

// Notifier shows notices to the user
type Notifier interface {
	Success(message string)
	Failure(message string, err error)
}

// Endpoint exchanges an authorization code through the login endpoint
type Endpoint interface {
	Login(ctx context.Context, strategy auth.Strategy, code string) (*auth.Result, error)
}

// Phase is the controller state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAuthenticating
)

func (p Phase) String() string {
	if p == PhaseAuthenticating {
		return "authenticating"
	}
	return "idle"
}

// Options configures a Controller
type Options struct {
	Strategy auth.Strategy
	ClientID string
	Scope    string
	Storage  *storage.Store
	Consent  Consent
	Endpoint Endpoint
	Reporter Reporter
	Notifier Notifier
	Policy   Policy

	// NewState overrides the state token generator. Used by tests.
	NewState func() string
}

// Controller runs login attempts, at most one at a time
type Controller struct {
	strategy auth.Strategy
	clientID string
	scope    string
	kv       *storage.Store
	consent  Consent
	endpoint Endpoint
	reporter Reporter
	notifier Notifier
	policy   Policy
	newState func() string

	mu    sync.Mutex
	phase Phase
}

// NewController validates opts and creates a Controller
func NewController(opts Options) (*Controller, error) {
	if _, err := auth.ParseStrategy(string(opts.Strategy)); err != nil {
		return nil, err
	}
	switch {
	case opts.Storage == nil:
		return nil, errors.New("login controller requires storage")
	case opts.Consent == nil:
		return nil, errors.New("login controller requires a consent flow")
	case opts.Endpoint == nil:
		return nil, errors.New("login controller requires an endpoint")
	case opts.Reporter == nil:
		return nil, errors.New("login controller requires a reporter")
	}

	c := &Controller{
		strategy: opts.Strategy,
		clientID: opts.ClientID,
		scope:    opts.Scope,
		kv:       opts.Storage,
		consent:  opts.Consent,
		endpoint: opts.Endpoint,
		reporter: opts.Reporter,
		notifier: opts.Notifier,
		policy:   opts.Policy,
		newState: opts.NewState,
	}
	if c.scope == "" {
		c.scope = "email profile openid"
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.policy == nil {
		c.policy = DefaultPolicy()
	}
	if c.newState == nil {
		c.newState = crypto.NewStateToken
	}
	return c, nil
}

// Phase returns the current controller state
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Start begins a login attempt. It returns ErrInProgress if one is already
// running. The attempt completes exactly once, whatever happens.
func (c *Controller) Start(ctx context.Context) (*Attempt, error) {
	c.mu.Lock()
	if c.phase == PhaseAuthenticating {
		c.mu.Unlock()
		return nil, ErrInProgress
	}
	c.phase = PhaseAuthenticating
	c.mu.Unlock()

	token := c.newState()
	persisted := true
	if err := c.kv.Set(ctx, StateKey, token); err != nil {
		log.LogWarnWithFields("login", "Failed to persist state, checking against this attempt only", map[string]any{
			"error": err.Error(),
		})
		persisted = false
	}

	log.LogDebugWithFields("login", "Starting login attempt", map[string]any{
		"strategy": c.strategy,
	})

	flow := c.consent.RequestCode(ctx, ConsentConfig{
		ClientID: c.clientID,
		Scope:    c.scope,
		UXMode:   "popup",
		State:    token,
	})

	attempt := newAttempt(c.strategy)
	go c.run(ctx, attempt, token, persisted, flow)
	return attempt, nil
}

func (c *Controller) run(ctx context.Context, attempt *Attempt, token string, persisted bool, flow ConsentFlow) {
	var outcome Outcome

	select {
	case co, ok := <-flow.Outcome:
		outcome = c.handleConsent(ctx, token, persisted, co, ok)
	case <-flow.Abandoned:
		// a response that raced the closure wins
		select {
		case co, ok := <-flow.Outcome:
			outcome = c.handleConsent(ctx, token, persisted, co, ok)
		default:
			outcome.Err = auth.Errorf(auth.KindAbandoned, "popup closed before login completed")
		}
	case <-ctx.Done():
		outcome.Err = auth.Wrap(auth.KindAbandoned, "login cancelled", ctx.Err())
	}

	c.finish(context.WithoutCancel(ctx), attempt, token, outcome)
}

func (c *Controller) handleConsent(ctx context.Context, token string, persisted bool, co ConsentOutcome, ok bool) Outcome {
	if !ok {
		return Outcome{Err: auth.Errorf(auth.KindAbandoned, "consent ended without a response")}
	}
	if co.Err != nil {
		return Outcome{Err: co.Err}
	}

	if !c.stateMatches(ctx, token, persisted, co.Response.State) {
		log.LogWarnWithFields("login", "State mismatch", map[string]any{
			"strategy": c.strategy,
		})
		return Outcome{Err: auth.Errorf(auth.KindStateMismatch, "State does not match")}
	}

	result, err := c.endpoint.Login(ctx, c.strategy, co.Response.Code)
	if err != nil {
		return Outcome{Err: auth.Wrap(auth.KindOf(err), "Something went wrong", err)}
	}
	if err := result.Validate(); err != nil {
		return Outcome{Err: auth.Wrap(auth.KindInternal, "Something went wrong", err)}
	}
	return Outcome{Result: result}
}

// stateMatches compares the returned state with the persisted one. Without a
// persistence medium, or when persisting failed, the attempt's own token is
// the reference.
func (c *Controller) stateMatches(ctx context.Context, token string, persisted bool, returned string) bool {
	if !c.kv.Available() || !persisted {
		return crypto.StateEqual(token, returned)
	}
	stored, ok := c.kv.Get(ctx, StateKey)
	if !ok {
		return false
	}
	return crypto.StateEqual(stored, returned)
}

func (c *Controller) finish(ctx context.Context, attempt *Attempt, token string, outcome Outcome) {
	c.clearState(ctx, token)

	fields := map[string]any{"strategy": c.strategy}
	if outcome.Err != nil {
		kind := auth.KindOf(outcome.Err)
		fields["kind"] = kind
		fields["error"] = outcome.Err.Error()
		log.LogInfoWithFields("login", "Login failed", fields)
		if c.policy.Visible(kind) {
			c.notifier.Failure(FailureNotice, outcome.Err)
		}
	} else {
		fields["email"] = outcome.Result.Profile.Email
		log.LogInfoWithFields("login", "Login succeeded", fields)
		c.notifier.Success(SuccessNotice)
	}

	c.reporter.Report(ctx, outcome.Result)

	c.mu.Lock()
	c.phase = PhaseIdle
	c.mu.Unlock()

	attempt.complete(outcome)
}

// clearState removes the persisted state unless a newer attempt replaced it
func (c *Controller) clearState(ctx context.Context, token string) {
	stored, ok := c.kv.Get(ctx, StateKey)
	if !ok || stored != token {
		return
	}
	if err := c.kv.Remove(ctx, StateKey); err != nil {
		log.LogWarnWithFields("login", "Failed to clear state", map[string]any{
			"error": err.Error(),
		})
	}
}

type nopNotifier struct{}

func (nopNotifier) Success(string)        {}
func (nopNotifier) Failure(string, error) {}
