package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/model"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// IdentityProvider runs the Authorization Code flow against an external
// provider and hands back a verified Identity.
type IdentityProvider interface {
	// AuthURL returns where to send the browser. state is echoed back on
	// the callback and must be checked by the caller.
	AuthURL(state string) string
	// Exchange trades the callback code for the user's verified identity.
	// Provider failures are apperror.ErrUpstreamIdentity.
	Exchange(ctx context.Context, code string) (*model.Identity, error)
}

// googleUserInfo is the subset of the OpenID Connect userinfo response we use.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleProvider implements IdentityProvider for Google accounts.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider creates a provider for the given OAuth client.
// redirectURL must match the one registered in the Google console.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// WithEndpoints points the provider at different OAuth and userinfo URLs.
func (p *GoogleProvider) WithEndpoints(authURL, tokenURL, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  authURL,
		TokenURL: tokenURL,
	}
	p.userInfoURL = userInfoURL
	return p
}

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.Identity, error) {
	if code == "" {
		return nil, apperror.Upstream("missing authorization code")
	}

	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream(describeExchangeError(err))
	}

	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.Upstream("userinfo request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Upstream(fmt.Sprintf("userinfo returned status %d", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperror.Upstream("malformed userinfo response")
	}

	if strings.TrimSpace(info.Email) == "" {
		return nil, apperror.Upstream("no email returned")
	}
	if !info.EmailVerified {
		return nil, apperror.Upstream("email not verified")
	}

	return &model.Identity{
		Email:       info.Email,
		DisplayName: info.Name,
		PictureURL:  info.Picture,
	}, nil
}

// describeExchangeError keeps the OAuth error code and drops the raw
// response body.
func describeExchangeError(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		return re.ErrorCode
	}
	return "token exchange failed"
}

// unconfiguredProvider stands in when no OAuth client is configured.
type unconfiguredProvider struct{}

// NewUnconfiguredProvider returns an IdentityProvider that rejects every
// call with apperror.ErrUpstreamUnavailable.
func NewUnconfiguredProvider() IdentityProvider {
	return unconfiguredProvider{}
}

func (unconfiguredProvider) AuthURL(string) string { return "" }

func (unconfiguredProvider) Exchange(context.Context, string) (*model.Identity, error) {
	return nil, apperror.ErrUpstreamUnavailable
}

// Configured reports whether p can actually reach a provider.
func Configured(p IdentityProvider) bool {
	_, stub := p.(unconfiguredProvider)
	return !stub
}
