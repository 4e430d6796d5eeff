package atlassian

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthClient(srv *httptest.Server) *AuthClient {
	c := NewAuthClient("client-id", "client-secret", "https://bot.example/api/auth/callback", "read:jira-work offline_access")
	c.authBase = srv.URL
	c.apiBase = srv.URL
	c.httpClient = srv.Client()
	return c
}

func TestAuthorizationURL(t *testing.T) {
	c := NewAuthClient("client-id", "client-secret", "https://bot.example/api/auth/callback", "read:jira-work offline_access")

	raw := c.AuthorizationURL("user-42", "verifier-abc")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "auth.atlassian.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "api.atlassian.com", q.Get("audience"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "read:jira-work offline_access", q.Get("scope"))
	assert.Equal(t, "https://bot.example/api/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "user-42", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	// Plain PKCE: the challenge is the verifier itself.
	assert.Equal(t, "verifier-abc", q.Get("code_challenge"))
	assert.Equal(t, "plain", q.Get("code_challenge_method"))
}

func TestExchangeCode(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	}))
	defer srv.Close()

	c := newTestAuthClient(srv)
	tok, err := c.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)

	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken)
	assert.Equal(t, 3600, tok.ExpiresIn)

	assert.Equal(t, "authorization_code", gotBody["grant_type"])
	assert.Equal(t, "the-code", gotBody["code"])
	assert.Equal(t, "the-verifier", gotBody["code_verifier"])
	assert.Equal(t, "https://bot.example/api/auth/callback", gotBody["redirect_uri"])
}

func TestRefreshOmitsOptionalRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "refresh_token", body["grant_type"])
		assert.Equal(t, "rt-old", body["refresh_token"])
		// Provider keeps the old refresh token: no refresh_token in reply.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-2",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := newTestAuthClient(srv)
	tok, err := c.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tok.AccessToken)
	assert.Empty(t, tok.RefreshToken)
}

func TestTokenUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := newTestAuthClient(srv)
	_, err := c.Refresh(context.Background(), "rt-revoked")
	require.Error(t, err)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.Status)
	assert.Contains(t, ue.Body, "invalid_grant")
}

func TestAccessibleResources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token/accessible-resources", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "cloud-1", "name": "acme", "url": "https://acme.atlassian.net", "scopes": []string{"read:jira-work"}},
		})
	}))
	defer srv.Close()

	c := newTestAuthClient(srv)
	res, err := c.AccessibleResources(context.Background(), "at-1")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "cloud-1", res[0].ID)
}

func TestPickCloudID(t *testing.T) {
	tests := []struct {
		name      string
		resources []Resource
		want      string
		wantErr   bool
	}{
		{
			name: "matches tracker domain",
			resources: []Resource{
				{ID: "other", URL: "https://acme.example.com"},
				{ID: "jira", URL: "https://acme.atlassian.net"},
			},
			want: "jira",
		},
		{
			name: "falls back to first entry",
			resources: []Resource{
				{ID: "first", URL: "https://one.example.com"},
				{ID: "second", URL: "https://two.example.com"},
			},
			want: "first",
		},
		{
			name:    "empty list",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PickCloudID(tt.resources)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
