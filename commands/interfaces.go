package commands

import (
	"context"

	"jira-facilities-bot/atlassian"
)

// AuthClient is the OAuth side of the Atlassian integration.
type AuthClient interface {
	AuthorizationURL(state, codeVerifier string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*atlassian.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*atlassian.TokenResponse, error)
	AccessibleResources(ctx context.Context, accessToken string) ([]atlassian.Resource, error)
}

// IssueTracker is the Jira REST side.
type IssueTracker interface {
	Search(ctx context.Context, accessToken, cloudID, jql, fields string, maxResults int) ([]atlassian.Issue, error)
	Transitions(ctx context.Context, accessToken, cloudID, issueKey string) ([]atlassian.Transition, error)
	DoTransition(ctx context.Context, accessToken, cloudID, issueKey, transitionID string) error
	AddWorklog(ctx context.Context, accessToken, cloudID, issueKey, started string, hours float64, comment string) (string, error)
}
