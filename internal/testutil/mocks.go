package testutil

import (
	"context"
	"sync"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
	StrategyName auth.Strategy
}

func (m *MockProvider) Strategy() auth.Strategy {
	return m.StrategyName
}

func (m *MockProvider) AuthURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (auth.UserProfile, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(auth.UserProfile), args.Error(1)
}

type MockEndpoint struct {
	mock.Mock
}

func (m *MockEndpoint) Login(ctx context.Context, strategy auth.Strategy, code string) (*auth.Result, error) {
	args := m.Called(ctx, strategy, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Result), args.Error(1)
}

// Notice is a notice recorded by RecordingNotifier
type Notice struct {
	Success bool
	Message string
	Err     error
}

// RecordingNotifier records every notice
type RecordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *RecordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{Success: true, Message: message})
}

func (n *RecordingNotifier) Failure(message string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{Message: message, Err: err})
}

func (n *RecordingNotifier) Notices() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// RecordingReporter records every reported outcome
type RecordingReporter struct {
	mu      sync.Mutex
	reports []*auth.Result
}

func (r *RecordingReporter) Report(_ context.Context, result *auth.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, result)
}

func (r *RecordingReporter) Reports() []*auth.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*auth.Result(nil), r.reports...)
}
