package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the given identity.
var ErrNotFound = errors.New("store: not found")

// Credential is a user's Jira link as seen by callers. The refresh token is
// already decrypted; the encrypted form never leaves the store.
type Credential struct {
	TeamsUserID        string
	AtlassianAccountID string
	CloudID            string
	RefreshToken       string
}

// PendingAuth tracks an in-flight authorization attempt. It is upserted when
// a login link is generated and looked up by the state value on callback.
type PendingAuth struct {
	TeamsUserID  string
	CodeVerifier string
	CreatedAt    time.Time
}

// Store persists pending authorizations and per-user credentials.
type Store interface {
	SavePendingAuth(ctx context.Context, teamsUserID, codeVerifier string) error
	TakePendingAuth(ctx context.Context, state string) (string, error)
	UpsertCredential(ctx context.Context, teamsUserID, accountID, cloudID, refreshToken string) error
	GetCredential(ctx context.Context, teamsUserID string) (*Credential, error)
}
