package login

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/session"
	"github.com/dgellow/popauth/internal/storage"
	"github.com/dgellow/popauth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pendingConsent struct {
	cfg       ConsentConfig
	outcome   chan ConsentOutcome
	abandoned chan struct{}
}

// fakeConsent hands control of each consent request to the test
type fakeConsent struct {
	mu       sync.Mutex
	requests []*pendingConsent
}

func (f *fakeConsent) RequestCode(_ context.Context, cfg ConsentConfig) ConsentFlow {
	p := &pendingConsent{
		cfg:       cfg,
		outcome:   make(chan ConsentOutcome, 1),
		abandoned: make(chan struct{}),
	}
	f.mu.Lock()
	f.requests = append(f.requests, p)
	f.mu.Unlock()
	return ConsentFlow{Outcome: p.outcome, Abandoned: p.abandoned}
}

func (f *fakeConsent) request(t *testing.T, i int) *pendingConsent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.requests), i)
	return f.requests[i]
}

func (p *pendingConsent) approve(code string) {
	p.outcome <- ConsentOutcome{Response: CodeResponse{Code: code, State: p.cfg.State}}
}

func sequentialStates() func() string {
	var n atomic.Int32
	return func() string {
		return fmt.Sprintf("state-%d", n.Add(1))
	}
}

var jane = &auth.Result{
	Strategy: auth.StrategyGoogle,
	Profile: auth.UserProfile{
		Name:          "Jane Doe",
		Email:         "jane@example.com",
		EmailVerified: true,
	},
}

type harness struct {
	kv       *storage.Store
	backend  *storage.MemoryBackend
	consent  *fakeConsent
	endpoint *testutil.MockEndpoint
	notifier *testutil.RecordingNotifier
	reporter *testutil.RecordingReporter
	ctrl     *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := storage.NewMemoryBackend()
	h := &harness{
		backend:  backend,
		kv:       storage.New(backend, "app_"),
		consent:  &fakeConsent{},
		endpoint: &testutil.MockEndpoint{},
		notifier: &testutil.RecordingNotifier{},
		reporter: &testutil.RecordingReporter{},
	}
	h.ctrl = h.controller(t, sequentialStates())
	return h
}

func (h *harness) controller(t *testing.T, newState func() string) *Controller {
	t.Helper()
	ctrl, err := NewController(Options{
		Strategy: auth.StrategyGoogle,
		ClientID: "client-id",
		Storage:  h.kv,
		Consent:  h.consent,
		Endpoint: h.endpoint,
		Reporter: h.reporter,
		Notifier: h.notifier,
		NewState: newState,
	})
	require.NoError(t, err)
	return ctrl
}

func wait(t *testing.T, a *Attempt) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := a.Wait(ctx)
	require.NoError(t, err, "attempt did not complete")
	return o
}

func TestController_Success(t *testing.T) {
	h := newHarness(t)
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").Return(jane, nil)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticating, h.ctrl.Phase())

	req := h.consent.request(t, 0)
	assert.Equal(t, ConsentConfig{ClientID: "client-id", Scope: "email profile openid", UXMode: "popup", State: "state-1"}, req.cfg)

	stored, ok := h.kv.Get(context.Background(), StateKey)
	require.True(t, ok, "state persisted before consent")
	assert.Equal(t, "state-1", stored)

	req.approve("abc")
	o := wait(t, attempt)

	require.NoError(t, o.Err)
	assert.True(t, o.Succeeded())
	assert.Equal(t, jane, o.Result)
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())

	_, ok = h.kv.Get(context.Background(), StateKey)
	assert.False(t, ok, "state removed after success")

	assert.Equal(t, []*auth.Result{jane}, h.reporter.Reports())
	assert.Equal(t, []testutil.Notice{{Success: true, Message: SuccessNotice}}, h.notifier.Notices())
	h.endpoint.AssertExpectations(t)
}

func TestController_ReentryIgnored(t *testing.T) {
	h := newHarness(t)

	first, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	_, err = h.ctrl.Start(context.Background())
	assert.ErrorIs(t, err, ErrInProgress)

	close(h.consent.request(t, 0).abandoned)
	wait(t, first)

	_, err = h.ctrl.Start(context.Background())
	assert.NoError(t, err, "idle again after completion")
}

func TestController_StateMismatch(t *testing.T) {
	h := newHarness(t)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	h.consent.request(t, 0).outcome <- ConsentOutcome{Response: CodeResponse{Code: "abc", State: "forged"}}
	o := wait(t, attempt)

	require.Error(t, o.Err)
	assert.Nil(t, o.Result)
	assert.Equal(t, auth.KindStateMismatch, auth.KindOf(o.Err))
	assert.Equal(t, "State does not match", o.Err.Error())

	_, ok := h.kv.Get(context.Background(), StateKey)
	assert.False(t, ok)

	h.endpoint.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	notices := h.notifier.Notices()
	require.Len(t, notices, 1)
	assert.False(t, notices[0].Success)
	assert.Equal(t, FailureNotice, notices[0].Message)
	assert.Equal(t, []*auth.Result{nil}, h.reporter.Reports())
}

func TestController_EmptyStateRejected(t *testing.T) {
	h := newHarness(t)
	h.ctrl = h.controller(t, func() string { return "" })

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	h.consent.request(t, 0).outcome <- ConsentOutcome{Response: CodeResponse{Code: "abc", State: ""}}
	o := wait(t, attempt)

	assert.Equal(t, auth.KindStateMismatch, auth.KindOf(o.Err))
	h.endpoint.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_ProviderInvalidGrant(t *testing.T) {
	h := newHarness(t)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	h.consent.request(t, 0).outcome <- ConsentOutcome{Err: auth.Errorf(auth.KindInvalidGrant, "invalid_grant")}
	o := wait(t, attempt)

	assert.Equal(t, auth.KindInvalidGrant, auth.KindOf(o.Err))
	assert.Nil(t, o.Result)

	_, ok := h.kv.Get(context.Background(), StateKey)
	assert.False(t, ok, "state removed after failure")

	notices := h.notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, FailureNotice, notices[0].Message)
	assert.ErrorContains(t, notices[0].Err, "invalid_grant")
}

func TestController_ConsentErrorIsSilent(t *testing.T) {
	h := newHarness(t)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	h.consent.request(t, 0).outcome <- ConsentOutcome{Err: &auth.Error{Kind: auth.KindConsent, Message: "server_error: boom"}}
	o := wait(t, attempt)

	assert.Equal(t, auth.KindConsent, auth.KindOf(o.Err))
	assert.Empty(t, h.notifier.Notices())
	assert.Equal(t, []*auth.Result{nil}, h.reporter.Reports())
	h.endpoint.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)

	_, ok := h.kv.Get(context.Background(), StateKey)
	assert.False(t, ok)
}

func TestController_EndpointFailure(t *testing.T) {
	h := newHarness(t)
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").
		Return(nil, auth.Errorf(auth.KindInvalidGrant, "invalid_grant: Bad Request"))

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	h.consent.request(t, 0).approve("abc")
	o := wait(t, attempt)

	require.Error(t, o.Err)
	assert.Equal(t, auth.KindInvalidGrant, auth.KindOf(o.Err))
	assert.Contains(t, o.Err.Error(), "Something went wrong")
	assert.Len(t, h.notifier.Notices(), 1)
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
}

func TestController_Abandoned(t *testing.T) {
	h := newHarness(t)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	close(h.consent.request(t, 0).abandoned)
	o := wait(t, attempt)

	assert.Equal(t, auth.KindAbandoned, auth.KindOf(o.Err))
	assert.Empty(t, h.notifier.Notices(), "abandoning is silent")
	assert.Equal(t, []*auth.Result{nil}, h.reporter.Reports())

	_, ok := h.kv.Get(context.Background(), StateKey)
	assert.False(t, ok)
}

func TestController_ClosureAfterResponseDoesNotDoubleReport(t *testing.T) {
	h := newHarness(t)
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").Return(jane, nil)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	req := h.consent.request(t, 0)
	req.approve("abc")
	close(req.abandoned)

	o := wait(t, attempt)
	assert.True(t, o.Succeeded())

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, h.reporter.Reports(), 1)
	assert.Len(t, h.notifier.Notices(), 1)
}

func TestController_ConsentEndsWithoutResponse(t *testing.T) {
	h := newHarness(t)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	close(h.consent.request(t, 0).outcome)
	o := wait(t, attempt)
	assert.Equal(t, auth.KindAbandoned, auth.KindOf(o.Err))
}

func TestController_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	attempt, err := h.ctrl.Start(ctx)
	require.NoError(t, err)

	cancel()
	o := wait(t, attempt)
	assert.Equal(t, auth.KindAbandoned, auth.KindOf(o.Err))

	_, ok := h.kv.Get(context.Background(), StateKey)
	assert.False(t, ok, "state removed even after cancellation")
}

func TestController_StaleAttemptFails(t *testing.T) {
	h := newHarness(t)
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "second-code").Return(jane, nil)

	// two controllers sharing storage, like two tabs of the same app
	first := h.controller(t, func() string { return "token-first" })
	second := h.controller(t, func() string { return "token-second" })

	a1, err := first.Start(context.Background())
	require.NoError(t, err)
	a2, err := second.Start(context.Background())
	require.NoError(t, err)

	// the provider approves the first attempt anyway
	h.consent.request(t, 0).approve("first-code")
	o1 := wait(t, a1)
	assert.Equal(t, auth.KindStateMismatch, auth.KindOf(o1.Err))
	assert.Nil(t, o1.Result)

	stored, ok := h.kv.Get(context.Background(), StateKey)
	require.True(t, ok, "newer attempt's state survives the stale failure")
	assert.Equal(t, "token-second", stored)

	h.consent.request(t, 1).approve("second-code")
	o2 := wait(t, a2)
	require.NoError(t, o2.Err)
	assert.Equal(t, jane, o2.Result)

	h.endpoint.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, "first-code")
}

func TestController_WithoutStorageBackend(t *testing.T) {
	h := newHarness(t)
	h.kv = storage.New(nil, "")
	h.ctrl = h.controller(t, sequentialStates())
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").Return(jane, nil)

	attempt, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)

	h.consent.request(t, 0).approve("abc")
	o := wait(t, attempt)
	assert.True(t, o.Succeeded())
}

func TestController_ReportsToSessionStore(t *testing.T) {
	h := newHarness(t)
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").Return(jane, nil)

	sessions, err := session.NewStore(h.kv)
	require.NoError(t, err)
	sessions.Load(context.Background())

	ctrl, err := NewController(Options{
		Strategy: auth.StrategyGoogle,
		Storage:  h.kv,
		Consent:  h.consent,
		Endpoint: h.endpoint,
		Reporter: sessions,
	})
	require.NoError(t, err)

	attempt, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	h.consent.request(t, 0).approve("abc")
	wait(t, attempt)

	result, ok := sessions.AuthData()
	require.True(t, ok)
	assert.Equal(t, jane, result)

	raw, err := h.backend.Get(context.Background(), "app_"+session.AuthDataKey)
	require.NoError(t, err)
	assert.Contains(t, raw, "jane@example.com")
}

func TestNewController_Validation(t *testing.T) {
	kv := storage.New(nil, "")
	tests := []struct {
		name string
		opts Options
	}{
		{name: "unknown_strategy", opts: Options{Strategy: "bogus", Storage: kv, Consent: &fakeConsent{}, Endpoint: &testutil.MockEndpoint{}, Reporter: &testutil.RecordingReporter{}}},
		{name: "missing_storage", opts: Options{Strategy: auth.StrategyGoogle, Consent: &fakeConsent{}, Endpoint: &testutil.MockEndpoint{}, Reporter: &testutil.RecordingReporter{}}},
		{name: "missing_consent", opts: Options{Strategy: auth.StrategyGoogle, Storage: kv, Endpoint: &testutil.MockEndpoint{}, Reporter: &testutil.RecordingReporter{}}},
		{name: "missing_endpoint", opts: Options{Strategy: auth.StrategyGoogle, Storage: kv, Consent: &fakeConsent{}, Reporter: &testutil.RecordingReporter{}}},
		{name: "missing_reporter", opts: Options{Strategy: auth.StrategyGoogle, Storage: kv, Consent: &fakeConsent{}, Endpoint: &testutil.MockEndpoint{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.Visible(auth.KindInvalidGrant))
	assert.True(t, p.Visible(auth.KindStateMismatch))
	assert.True(t, p.Visible(auth.KindInternal))
	assert.True(t, p.Visible(auth.KindProvider))
	assert.False(t, p.Visible(auth.KindConsent))
	assert.False(t, p.Visible(auth.KindAbandoned))
	assert.False(t, p.Visible(auth.KindConfig))
	assert.False(t, p.Visible(auth.Kind("unknown")))
}

func TestController_CorruptStorageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	backend, err := storage.NewFileBackend(path)
	require.NoError(t, err)

	h := newHarness(t)
	h.kv = storage.New(backend, "app_")
	ctrl := h.controller(t, sequentialStates())
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").Return(jane, nil)

	attempt, err := ctrl.Start(context.Background())
	require.NoError(t, err)
	h.consent.request(t, 0).approve("abc")
	o := wait(t, attempt)

	require.NoError(t, o.Err)
	assert.Equal(t, jane, o.Result)
	_, pending := h.kv.Get(context.Background(), StateKey)
	assert.False(t, pending)
}

// readOnlyBackend serves reads but rejects every write
type readOnlyBackend struct {
	*storage.MemoryBackend
}

func (readOnlyBackend) Set(context.Context, string, string) error {
	return errors.New("read-only file system")
}

func TestController_StateNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.kv = storage.New(readOnlyBackend{storage.NewMemoryBackend()}, "app_")
	ctrl := h.controller(t, sequentialStates())
	h.endpoint.On("Login", mock.Anything, auth.StrategyGoogle, "abc").Return(jane, nil)

	t.Run("own_token_accepted", func(t *testing.T) {
		attempt, err := ctrl.Start(context.Background())
		require.NoError(t, err)
		h.consent.request(t, 0).approve("abc")

		o := wait(t, attempt)
		require.NoError(t, o.Err)
		assert.Equal(t, jane, o.Result)
	})

	t.Run("foreign_token_rejected", func(t *testing.T) {
		attempt, err := ctrl.Start(context.Background())
		require.NoError(t, err)
		h.consent.request(t, 1).outcome <- ConsentOutcome{Response: CodeResponse{Code: "abc", State: "state-1"}}

		o := wait(t, attempt)
		assert.Equal(t, auth.KindStateMismatch, auth.KindOf(o.Err))
	})
}
