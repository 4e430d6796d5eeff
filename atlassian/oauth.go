package atlassian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// Atlassian OAuth 2.0 (3LO) endpoints.
	authBaseURL = "https://auth.atlassian.com"
	apiBaseURL  = "https://api.atlassian.com"

	// Jira Cloud tenants live under *.atlassian.net; used to pick the right
	// workspace among the accessible resources.
	trackerDomainSuffix = ".atlassian.net"
)

// AuthClient handles the per-user OAuth 2.0 authorization-code flow against
// auth.atlassian.com: login URL construction, code exchange, token refresh
// and workspace (cloud id) resolution.
type AuthClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	scopes       []string
	httpClient   *http.Client

	// overridable in tests
	authBase string
	apiBase  string
}

// NewAuthClient creates an AuthClient. Scopes is the space-separated scope
// list from configuration.
func NewAuthClient(clientID, clientSecret, redirectURI, scopes string) *AuthClient {
	return &AuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		scopes:       strings.Fields(scopes),
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		authBase:     authBaseURL,
		apiBase:      apiBaseURL,
	}
}

// AuthorizationURL builds the Atlassian authorize URL for the given state and
// PKCE verifier. The authorization server is configured for the "plain"
// challenge method, so the verifier doubles as the challenge.
func (c *AuthClient) AuthorizationURL(state, codeVerifier string) string {
	cfg := oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURI,
		Scopes:      c.scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: c.authBase + "/authorize"},
	}
	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", codeVerifier),
		oauth2.SetAuthURLParam("code_challenge_method", "plain"),
	)
}

// TokenResponse is the token endpoint reply. RefreshToken is empty when the
// provider chose not to rotate it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ExchangeCode swaps an authorization code plus its PKCE verifier for tokens.
func (c *AuthClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	return c.token(ctx, tokenRequest{
		GrantType:    "authorization_code",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Code:         code,
		RedirectURI:  c.redirectURI,
		CodeVerifier: codeVerifier,
	})
}

// Refresh exchanges a refresh token for a fresh access token. The response
// may or may not carry a rotated refresh token.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.token(ctx, tokenRequest{
		GrantType:    "refresh_token",
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RefreshToken: refreshToken,
	})
}

func (c *AuthClient) token(ctx context.Context, payload tokenRequest) (*TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var tok TokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response: %s", string(raw))
	}
	return &tok, nil
}

// Resource is one entry of the accessible-resources listing: an Atlassian
// site reachable by the access token.
type Resource struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Scopes []string `json:"scopes"`
}

// AccessibleResources lists the Atlassian sites the access token can reach.
func (c *AuthClient) AccessibleResources(ctx context.Context, accessToken string) ([]Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/oauth/token/accessible-resources", nil)
	if err != nil {
		return nil, fmt.Errorf("build accessible-resources request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("accessible-resources request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read accessible-resources response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var resources []Resource
	if err := json.Unmarshal(raw, &resources); err != nil {
		return nil, fmt.Errorf("unmarshal accessible-resources: %w", err)
	}
	return resources, nil
}

// PickCloudID chooses the workspace for Jira calls: the first resource whose
// URL is a *.atlassian.net site, falling back to the first entry.
func PickCloudID(resources []Resource) (string, error) {
	if len(resources) == 0 {
		return "", fmt.Errorf("no accessible Atlassian sites for this token")
	}
	for _, r := range resources {
		if r.ID != "" && strings.Contains(strings.ToLower(r.URL), trackerDomainSuffix) {
			return r.ID, nil
		}
	}
	return resources[0].ID, nil
}
