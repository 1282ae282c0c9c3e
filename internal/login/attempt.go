package login

import (
	"context"
	"sync"

	"github.com/dgellow/popauth/internal/auth"
)

// Outcome is the result of an attempt: Result on success, Err on failure
type Outcome struct {
	Result *auth.Result
	Err    error
}

// Succeeded reports whether the attempt produced a result
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// Attempt is one running login. It completes exactly once.
type Attempt struct {
	strategy auth.Strategy
	once     sync.Once
	done     chan struct{}
	outcome  Outcome
}

func newAttempt(strategy auth.Strategy) *Attempt {
	return &Attempt{strategy: strategy, done: make(chan struct{})}
}

func (a *Attempt) complete(o Outcome) {
	a.once.Do(func() {
		a.outcome = o
		close(a.done)
	})
}

// Strategy returns the strategy of the attempt
func (a *Attempt) Strategy() auth.Strategy {
	return a.strategy
}

// Done is closed when the attempt has completed
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Outcome returns the outcome once Done is closed, and false before
func (a *Attempt) Outcome() (Outcome, bool) {
	select {
	case <-a.done:
		return a.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the attempt completes or ctx ends
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
