package idp

import (
	"context"
	"errors"
	"os"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/emailutil"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleScope is the scope requested by the consent step, in Google's order
const GoogleScope = "email profile openid"

const defaultGoogleAPIEndpoint = "https://www.googleapis.com/"

// GoogleProvider implements the Provider interface for Google OAuth.
// Profiles are read from the oauth2 v2 userinfo API.
type GoogleProvider struct {
	config         oauth2.Config
	apiEndpoint    string
	allowedDomains []string
}

// GoogleEndpoint returns Google's OAuth endpoint. GOOGLE_OAUTH_AUTH_URL and
// GOOGLE_OAUTH_TOKEN_URL override it for testing.
func GoogleEndpoint() oauth2.Endpoint {
	endpoint := google.Endpoint
	if authURL := os.Getenv("GOOGLE_OAUTH_AUTH_URL"); authURL != "" {
		endpoint.AuthURL = authURL
	}
	if tokenURL := os.Getenv("GOOGLE_OAUTH_TOKEN_URL"); tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	return endpoint
}

// NewGoogleProvider creates a new Google OAuth provider. Missing credentials
// are a KindConfig error.
func NewGoogleProvider(clientID, clientSecret, redirectURI string, allowedDomains []string) (*GoogleProvider, error) {
	if err := requireCredentials(auth.StrategyGoogle, clientID, clientSecret, redirectURI); err != nil {
		return nil, err
	}

	apiEndpoint := defaultGoogleAPIEndpoint
	if custom := os.Getenv("GOOGLE_USERINFO_ENDPOINT"); custom != "" {
		apiEndpoint = custom
	}

	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     GoogleEndpoint(),
		},
		apiEndpoint:    apiEndpoint,
		allowedDomains: allowedDomains,
	}, nil
}

// Strategy returns the provider strategy.
func (p *GoogleProvider) Strategy() auth.Strategy {
	return auth.StrategyGoogle
}

// AuthURL generates the authorization URL.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange exchanges the code for a token and reads the user's profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (auth.UserProfile, error) {
	if err := requireCode(code); err != nil {
		return auth.UserProfile{}, err
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return auth.UserProfile{}, exchangeError(err)
	}

	return p.userInfo(ctx, token)
}

func (p *GoogleProvider) userInfo(ctx context.Context, token *oauth2.Token) (auth.UserProfile, error) {
	svc, err := googleoauth2.NewService(ctx,
		option.WithHTTPClient(p.config.Client(ctx, token)),
		option.WithEndpoint(p.apiEndpoint),
	)
	if err != nil {
		return auth.UserProfile{}, auth.Wrap(auth.KindInternal, "failed to create userinfo client", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				return auth.UserProfile{}, fetchError("user info", apiErr.Code, nil)
			}
			return auth.UserProfile{}, &auth.Error{Kind: auth.KindProvider, Message: "failed to get user info: " + msg, Err: err}
		}
		return auth.UserProfile{}, fetchError("user info", 0, err)
	}

	domain := info.Hd
	if domain == "" {
		domain = emailutil.Domain(info.Email)
	}
	if err := ValidateDomain(domain, p.allowedDomains); err != nil {
		return auth.UserProfile{}, err
	}

	return googleProfile(info), nil
}

// googleProfile keeps the fields of the normalized profile and drops the rest.
// Google omits verified_email when it is true.
func googleProfile(info *googleoauth2.Userinfo) auth.UserProfile {
	verified := info.VerifiedEmail == nil || *info.VerifiedEmail
	return auth.UserProfile{
		Name:          info.Name,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		Email:         info.Email,
		EmailVerified: verified,
		Picture:       info.Picture,
	}
}
