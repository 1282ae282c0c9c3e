package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/ioutil"
	jsonwriter "github.com/dgellow/popauth/internal/json"
	"github.com/dgellow/popauth/internal/urlutil"
)

const maxErrorBody = 64 << 10

var _ Endpoint = (*EndpointClient)(nil)

// EndpointClient calls the login endpoint over HTTP
type EndpointClient struct {
	url        string
	httpClient *http.Client
}

// NewEndpointClient creates a client for the login endpoint served under baseURL
func NewEndpointClient(baseURL string, httpClient *http.Client) (*EndpointClient, error) {
	u, err := urlutil.JoinPath(baseURL, "api", "login")
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &EndpointClient{url: u, httpClient: httpClient}, nil
}

// Login posts the code and returns the authentication result. Failures are
// *auth.Error values carrying the kind reported by the endpoint.
func (c *EndpointClient) Login(ctx context.Context, strategy auth.Strategy, code string) (*auth.Result, error) {
	body, err := json.Marshal(auth.LoginRequest{Strategy: string(strategy), TempToken: code})
	if err != nil {
		return nil, auth.Wrap(auth.KindInternal, "failed to encode login request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, auth.Wrap(auth.KindInternal, "failed to build login request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := auth.KindNetwork
		if errors.Is(err, context.Canceled) {
			kind = auth.KindAbandoned
		}
		return nil, auth.Wrap(kind, "login request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var result auth.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, auth.Wrap(auth.KindInternal, "failed to decode login response", err)
	}
	return &result, nil
}

func responseError(resp *http.Response) error {
	text := ioutil.ReadLimited(resp.Body, maxErrorBody)

	var errResp jsonwriter.ErrorResponse
	if err := json.Unmarshal([]byte(text), &errResp); err == nil && errResp.Error != "" {
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		return &auth.Error{Kind: auth.ParseKind(errResp.Error), Message: msg}
	}

	kind := auth.KindInternal
	if resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusGatewayTimeout {
		kind = auth.KindNetwork
	}
	if text == "" {
		return auth.Errorf(kind, "login endpoint returned status %d", resp.StatusCode)
	}
	return auth.Errorf(kind, "login endpoint returned status %d: %s", resp.StatusCode, text)
}
