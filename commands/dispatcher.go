package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"jira-facilities-bot/atlassian"
	"jira-facilities-bot/replies"
	"jira-facilities-bot/store"
)

const (
	defaultJQL    = "assignee=currentUser() AND statusCategory != Done ORDER BY updated DESC"
	defaultFields = "key,summary,status,assignee,updated"
	maxIssues     = 10
)

// Dispatcher orchestrates one inbound message end to end: credential lookup,
// token refresh with rotation, workspace resolution, command parsing and the
// Jira call, producing a user-facing reply. It is channel-agnostic; channel
// authentication happens before Handle is called.
type Dispatcher struct {
	store   store.Store
	auth    AuthClient
	tracker IssueTracker
	baseURL string
}

func NewDispatcher(st store.Store, auth AuthClient, tracker IssueTracker, appBaseURL string) *Dispatcher {
	return &Dispatcher{
		store:   st,
		auth:    auth,
		tracker: tracker,
		baseURL: strings.TrimRight(appBaseURL, "/"),
	}
}

func (d *Dispatcher) loginURL(teamsUserID string) string {
	return fmt.Sprintf("%s/api/auth/start?teamsUserId=%s", d.baseURL, url.QueryEscape(teamsUserID))
}

// StartLogin stores a fresh PKCE verifier for the user and returns the
// Atlassian authorize URL to redirect to. The Teams user id doubles as the
// OAuth state.
func (d *Dispatcher) StartLogin(ctx context.Context, teamsUserID string) (string, error) {
	verifier, err := generateVerifier()
	if err != nil {
		return "", err
	}
	if err := d.store.SavePendingAuth(ctx, teamsUserID, verifier); err != nil {
		return "", fmt.Errorf("save pending authorization: %w", err)
	}
	return d.auth.AuthorizationURL(teamsUserID, verifier), nil
}

func generateVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Authorize completes the OAuth callback: it consumes the pending
// authorization matching the state, exchanges the code, resolves the user's
// workspace and upserts the credential. store.ErrNotFound means an invalid
// or expired callback.
func (d *Dispatcher) Authorize(ctx context.Context, state, code string) error {
	verifier, err := d.store.TakePendingAuth(ctx, state)
	if err != nil {
		return err
	}

	tok, err := d.auth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return err
	}

	resources, err := d.auth.AccessibleResources(ctx, tok.AccessToken)
	if err != nil {
		return err
	}
	cloudID, err := atlassian.PickCloudID(resources)
	if err != nil {
		return err
	}

	return d.store.UpsertCredential(ctx, state, "me", cloudID, tok.RefreshToken)
}

// Handle runs the per-message state machine and always returns a reply; no
// error escapes to the channel.
func (d *Dispatcher) Handle(ctx context.Context, teamsUserID, text string) string {
	intent := Parse(text)

	// Login needs no credential: just hand out the link.
	if _, ok := intent.(Login); ok {
		return fmt.Sprintf(replies.MustGet("login_link"), d.loginURL(teamsUserID))
	}

	cred, err := d.store.GetCredential(ctx, teamsUserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			// Covers secrets.ErrIntegrity too: a corrupt credential is
			// treated as absent and the user re-authenticates.
			log.Printf("[dispatch] credential lookup for %s: %v", teamsUserID, err)
		}
		return fmt.Sprintf(replies.MustGet("login_required"), d.loginURL(teamsUserID))
	}

	tok, err := d.auth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		log.Printf("[dispatch] token refresh for %s failed: %v", teamsUserID, err)
		return fmt.Sprintf(replies.MustGet("refresh_failed"), atlassian.UpstreamText(err))
	}

	// Rotation: replace the stored refresh token only when the provider
	// issued a new one.
	if tok.RefreshToken != "" {
		if err := d.store.UpsertCredential(ctx, teamsUserID, cred.AtlassianAccountID, cred.CloudID, tok.RefreshToken); err != nil {
			log.Printf("[dispatch] refresh token rotation for %s failed: %v", teamsUserID, err)
		}
	}

	resources, err := d.auth.AccessibleResources(ctx, tok.AccessToken)
	if err != nil {
		return fmt.Sprintf(replies.MustGet("refresh_failed"), atlassian.UpstreamText(err))
	}
	cloudID, err := atlassian.PickCloudID(resources)
	if err != nil {
		return fmt.Sprintf(replies.MustGet("refresh_failed"), err.Error())
	}

	switch it := intent.(type) {
	case ListIssues:
		return d.listIssues(ctx, tok.AccessToken, cloudID)
	case LogWork:
		return d.logWork(ctx, tok.AccessToken, cloudID, it)
	case ListTransitions:
		return d.listTransitions(ctx, tok.AccessToken, cloudID, it)
	case ApplyTransition:
		return d.applyTransition(ctx, tok.AccessToken, cloudID, it)
	default:
		return replies.MustGet("help")
	}
}

func (d *Dispatcher) listIssues(ctx context.Context, accessToken, cloudID string) string {
	issues, err := d.tracker.Search(ctx, accessToken, cloudID, defaultJQL, defaultFields, maxIssues)
	if err != nil {
		return fmt.Sprintf(replies.MustGet("list_failed"), atlassian.UpstreamText(err))
	}
	if len(issues) == 0 {
		return fmt.Sprintf(replies.MustGet("list_header"), replies.MustGet("list_empty"))
	}

	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = fmt.Sprintf(replies.MustGet("list_item"), issue.Key, issue.Fields.Summary, issue.Fields.Status.Name)
	}
	return fmt.Sprintf(replies.MustGet("list_header"), strings.Join(lines, "\n"))
}

func (d *Dispatcher) logWork(ctx context.Context, accessToken, cloudID string, it LogWork) string {
	worklogID, err := d.tracker.AddWorklog(ctx, accessToken, cloudID, it.IssueKey, it.StartedAt, it.Hours, "")
	if err != nil {
		return fmt.Sprintf(replies.MustGet("worklog_failed"), atlassian.UpstreamText(err))
	}
	return fmt.Sprintf(replies.MustGet("worklog_ok"), it.Hours, it.IssueKey, worklogID)
}

func (d *Dispatcher) listTransitions(ctx context.Context, accessToken, cloudID string, it ListTransitions) string {
	transitions, err := d.tracker.Transitions(ctx, accessToken, cloudID, it.IssueKey)
	if err != nil {
		return fmt.Sprintf(replies.MustGet("transitions_failed"), atlassian.UpstreamText(err))
	}

	opts := replies.MustGet("transitions_empty")
	if len(transitions) > 0 {
		parts := make([]string, len(transitions))
		for i, t := range transitions {
			parts[i] = t.ID + ":" + t.Name
		}
		opts = strings.Join(parts, " | ")
	}
	return fmt.Sprintf(replies.MustGet("transitions"), it.IssueKey, opts, it.IssueKey)
}

func (d *Dispatcher) applyTransition(ctx context.Context, accessToken, cloudID string, it ApplyTransition) string {
	if err := d.tracker.DoTransition(ctx, accessToken, cloudID, it.IssueKey, it.TransitionID); err != nil {
		return fmt.Sprintf(replies.MustGet("move_failed"), atlassian.UpstreamText(err))
	}
	return fmt.Sprintf(replies.MustGet("move_ok"), it.IssueKey, it.TransitionID)
}
