package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/log"
	"github.com/dgellow/popauth/internal/popup"
	"github.com/dgellow/popauth/internal/urlutil"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// CodeResponse is what the provider hands back after consent
type CodeResponse struct {
	Code  string
	State string
}

// ConsentConfig configures one consent request
type ConsentConfig struct {
	ClientID string
	Scope    string
	UXMode   string
	State    string
}

// ConsentOutcome carries either the provider response or the provider error
type ConsentOutcome struct {
	Response CodeResponse
	Err      error
}

// ConsentFlow is a running consent request. Outcome yields at most one
// value. Abandoned, when not nil, is closed if the user closes the consent
// window.
type ConsentFlow struct {
	Outcome   <-chan ConsentOutcome
	Abandoned <-chan struct{}
}

// Consent starts the provider's consent step
type Consent interface {
	RequestCode(ctx context.Context, cfg ConsentConfig) ConsentFlow
}

// FailedFlow returns a flow that has already failed with err
func FailedFlow(err error) ConsentFlow {
	ch := make(chan ConsentOutcome, 1)
	ch <- ConsentOutcome{Err: err}
	close(ch)
	return ConsentFlow{Outcome: ch}
}

const callbackPath = "/callback"

var _ Consent = (*LoopbackConsent)(nil)

// LoopbackConsent opens the provider consent page in a popup and receives
// the redirect on a local listener.
type LoopbackConsent struct {
	// Addr is the listen address of the callback server, e.g. 127.0.0.1:8085.
	// The provider must accept http://<Addr>/callback as redirect URI.
	Addr     string
	Endpoint oauth2.Endpoint
	Popups   *popup.Controller
	Width    int
	Height   int
	Title    string
	// Prompt, when set, receives the consent URL so the user can open it by hand
	Prompt io.Writer
}

// RequestCode starts the callback server and opens the consent popup
func (l *LoopbackConsent) RequestCode(ctx context.Context, cfg ConsentConfig) ConsentFlow {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return FailedFlow(auth.Wrap(auth.KindConfig, "failed to listen for callback", err))
	}

	redirectURL, err := urlutil.LoopbackURL(ln.Addr().String(), callbackPath)
	if err != nil {
		ln.Close()
		return FailedFlow(auth.Wrap(auth.KindConfig, "invalid callback address", err))
	}

	oauthConfig := oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    l.Endpoint,
		RedirectURL: redirectURL,
		Scopes:      strings.Fields(cfg.Scope),
	}
	consentURL := oauthConfig.AuthCodeURL(cfg.State)

	outcome := make(chan ConsentOutcome, 1)
	delivered := make(chan struct{})
	var once sync.Once
	deliver := func(o ConsentOutcome) {
		once.Do(func() {
			outcome <- o
			close(outcome)
			close(delivered)
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		o := callbackOutcome(r)
		deliver(o)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if o.Err != nil {
			fmt.Fprint(w, closePage("Login was not completed. You can close this window."))
			return
		}
		fmt.Fprint(w, closePage("Login received. You can close this window."))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if l.Prompt != nil {
		fmt.Fprintf(l.Prompt, "Opening the sign in page. If nothing opens, visit:\n  %s\n", consentURL)
	}

	sub := l.Popups.Open(ctx, popup.Options{
		ID:     cfg.State,
		URL:    consentURL,
		Title:  l.Title,
		Width:  l.Width,
		Height: l.Height,
	})

	var g errgroup.Group
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(ConsentOutcome{Err: auth.Wrap(auth.KindNetwork, "callback server failed", err)})
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-delivered:
		case <-sub.Closed():
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		sub.Unsubscribe()
		return err
	})
	go func() {
		if err := g.Wait(); err != nil {
			log.LogWarnWithFields("login", "Callback server stopped with error", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	return ConsentFlow{Outcome: outcome, Abandoned: sub.Closed()}
}

// callbackOutcome reads the provider redirect
func callbackOutcome(r *http.Request) ConsentOutcome {
	q := r.URL.Query()

	if code := q.Get("error"); code != "" {
		msg := code
		if desc := q.Get("error_description"); desc != "" {
			msg = code + ": " + desc
		}
		kind := auth.KindConsent
		if code == "access_denied" {
			kind = auth.KindAbandoned
		}
		return ConsentOutcome{Err: &auth.Error{Kind: kind, Message: msg}}
	}

	return ConsentOutcome{Response: CodeResponse{
		Code:  q.Get("code"),
		State: q.Get("state"),
	}}
}

func closePage(message string) string {
	return "<!doctype html><html><body><p>" + message + "</p><script>window.close()</script></body></html>"
}
