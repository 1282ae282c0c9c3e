package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/emailutil"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider implements the Provider interface for GitHub OAuth.
// GitHub uses OAuth 2.0 (not OIDC) and has its own API for user info and org membership.
type GitHubProvider struct {
	config         oauth2.Config
	apiBaseURL     string // defaults to https://api.github.com, can be overridden for testing
	allowedDomains []string
	allowedOrgs    []string
}

// githubUserResponse represents GitHub's user API response.
type githubUserResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// githubEmailResponse represents an email from GitHub's emails API.
type githubEmailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// githubOrgResponse represents an org from GitHub's orgs API.
type githubOrgResponse struct {
	Login string `json:"login"`
}

// NewGitHubProvider creates a new GitHub OAuth provider.
func NewGitHubProvider(clientID, clientSecret, redirectURI string, allowedDomains, allowedOrgs []string) (*GitHubProvider, error) {
	if err := requireCredentials(auth.StrategyGitHub, clientID, clientSecret, redirectURI); err != nil {
		return nil, err
	}

	scopes := []string{"read:user", "user:email"}
	if len(allowedOrgs) > 0 {
		scopes = append(scopes, "read:org")
	}

	return &GitHubProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint:     github.Endpoint,
		},
		apiBaseURL:     "https://api.github.com",
		allowedDomains: allowedDomains,
		allowedOrgs:    allowedOrgs,
	}, nil
}

// Strategy returns the provider strategy.
func (p *GitHubProvider) Strategy() auth.Strategy {
	return auth.StrategyGitHub
}

// AuthURL generates the authorization URL.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange exchanges the code for a token and reads the user's profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (auth.UserProfile, error) {
	if err := requireCode(code); err != nil {
		return auth.UserProfile{}, err
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return auth.UserProfile{}, exchangeError(err)
	}

	return p.userInfo(ctx, token)
}

func (p *GitHubProvider) userInfo(ctx context.Context, token *oauth2.Token) (auth.UserProfile, error) {
	client := p.config.Client(ctx, token)

	var user githubUserResponse
	if err := p.get(ctx, client, "/user", "user", &user); err != nil {
		return auth.UserProfile{}, err
	}

	// GitHub only shows verified emails in user profile, so if email is present it's verified
	email := user.Email
	emailVerified := email != ""
	if email == "" {
		primaryEmail, verified, err := p.fetchPrimaryEmail(ctx, client)
		if err != nil {
			return auth.UserProfile{}, err
		}
		email = primaryEmail
		emailVerified = verified
	}

	if err := ValidateDomain(emailutil.Domain(email), p.allowedDomains); err != nil {
		return auth.UserProfile{}, err
	}

	if len(p.allowedOrgs) > 0 {
		var orgs []githubOrgResponse
		if err := p.get(ctx, client, "/user/orgs", "organizations", &orgs); err != nil {
			return auth.UserProfile{}, err
		}
		member := slices.ContainsFunc(orgs, func(o githubOrgResponse) bool {
			return slices.Contains(p.allowedOrgs, o.Login)
		})
		if !member {
			return auth.UserProfile{}, auth.Errorf(auth.KindProvider, "user is not a member of an allowed organization")
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return auth.UserProfile{
		Name:          name,
		Email:         email,
		EmailVerified: emailVerified,
		Picture:       user.AvatarURL,
	}, nil
}

func (p *GitHubProvider) get(ctx context.Context, client *http.Client, path, what string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return auth.Wrap(auth.KindInternal, fmt.Sprintf("failed to build %s request", what), err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fetchError(what, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fetchError(what, resp.StatusCode, nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return auth.Wrap(auth.KindProvider, fmt.Sprintf("failed to decode %s", what), err)
	}
	return nil
}

func (p *GitHubProvider) fetchPrimaryEmail(ctx context.Context, client *http.Client) (string, bool, error) {
	var emails []githubEmailResponse
	if err := p.get(ctx, client, "/user/emails", "emails", &emails); err != nil {
		return "", false, err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, true, nil
		}
	}

	// Fallback to first verified email
	for _, email := range emails {
		if email.Verified {
			return email.Email, true, nil
		}
	}

	return "", false, auth.Errorf(auth.KindProvider, "no verified email found")
}
