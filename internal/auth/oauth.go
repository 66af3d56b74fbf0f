package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
)

// Scopes requested at login. repo is needed to count commits of private starred repositories.
var Scopes = []string{"read:user", "user:email", "repo"}

// GitHubUser is the profile returned by GET /user.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider runs the GitHub OAuth authorization code flow.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
	logger     *logrus.Logger
}

// ProviderOption configures a GitHubProvider
type ProviderOption func(*GitHubProvider)

// WithEndpoint replaces GitHub's authorize and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = endpoint
	}
}

// WithAPIBaseURL sets where profile requests go.
func WithAPIBaseURL(baseURL string) ProviderOption {
	return func(p *GitHubProvider) {
		p.apiBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the client used for the token exchange and profile requests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *GitHubProvider) {
		p.httpClient = client
	}
}

func NewGitHubProvider(clientID, clientSecret, redirectURL string, logger *logrus.Logger, opts ...ProviderOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     githuboauth.Endpoint,
		},
		apiBaseURL: "https://api.github.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewState returns an unguessable value for the OAuth state parameter.
func NewState() string {
	return oauth2.GenerateVerifier()
}

// AuthURL returns GitHub's consent screen URL carrying state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token and loads the user's profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, *GitHubUser, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, apperrors.NewUnauthorizedError("failed to exchange authorization code", err)
	}

	client := p.config.Client(ctx, token)

	var user GitHubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch GitHub profile: %w", err)
	}

	if user.Email == "" {
		email, err := p.primaryEmail(ctx, client)
		if err != nil {
			p.logger.WithError(err).WithField("login", user.Login).Warn("Could not determine primary email")
		}
		user.Email = email
	}

	return token, &user, nil
}

func (p *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
