package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"jira-facilities-bot/secrets"
)

// Mongo persists credentials and pending authorizations in MongoDB. Refresh
// tokens are sealed with the Box before they touch the database; ciphertext,
// nonce and tag are stored as separate base64 fields.
type Mongo struct {
	client  *mongo.Client
	pending *mongo.Collection
	tokens  *mongo.Collection
	box     *secrets.Box
}

var _ Store = (*Mongo)(nil)

type pendingRecord struct {
	TeamsUserID  string    `bson:"_id"`
	CodeVerifier string    `bson:"code_verifier"`
	CreatedAt    time.Time `bson:"created_at"`
}

type credentialRecord struct {
	TeamsUserID        string `bson:"_id"`
	AtlassianAccountID string `bson:"atlassian_account_id"`
	CloudID            string `bson:"cloud_id"`
	RefreshTokenEnc    string `bson:"refresh_token_enc"`
	Nonce              string `bson:"nonce"`
	Tag                string `bson:"tag"`
}

// Connect opens the MongoDB connection and binds the two collections. Using
// the Teams user id as _id gives the unique-per-identity constraint for free.
func Connect(uri, dbName string, box *secrets.Box) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	return &Mongo{
		client:  client,
		pending: db.Collection("oauth_state"),
		tokens:  db.Collection("jira_tokens"),
		box:     box,
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) SavePendingAuth(ctx context.Context, teamsUserID, codeVerifier string) error {
	rec := pendingRecord{
		TeamsUserID:  teamsUserID,
		CodeVerifier: codeVerifier,
		CreatedAt:    time.Now().UTC(),
	}
	opts := options.UpdateOne().SetUpsert(true)
	_, err := m.pending.UpdateOne(ctx, bson.M{"_id": teamsUserID}, bson.M{"$set": rec}, opts)
	return err
}

func (m *Mongo) TakePendingAuth(ctx context.Context, state string) (string, error) {
	var rec pendingRecord
	err := m.pending.FindOne(ctx, bson.M{"_id": state}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return rec.CodeVerifier, nil
}

func (m *Mongo) UpsertCredential(ctx context.Context, teamsUserID, accountID, cloudID, refreshToken string) error {
	sealed, err := m.box.Seal(refreshToken)
	if err != nil {
		return err
	}

	rec := credentialRecord{
		TeamsUserID:        teamsUserID,
		AtlassianAccountID: accountID,
		CloudID:            cloudID,
		RefreshTokenEnc:    sealed.Ciphertext,
		Nonce:              sealed.Nonce,
		Tag:                sealed.Tag,
	}
	opts := options.UpdateOne().SetUpsert(true)
	_, err = m.tokens.UpdateOne(ctx, bson.M{"_id": teamsUserID}, bson.M{"$set": rec}, opts)
	return err
}

func (m *Mongo) GetCredential(ctx context.Context, teamsUserID string) (*Credential, error) {
	var rec credentialRecord
	err := m.tokens.FindOne(ctx, bson.M{"_id": teamsUserID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	refresh, err := m.box.Open(secrets.Sealed{
		Ciphertext: rec.RefreshTokenEnc,
		Nonce:      rec.Nonce,
		Tag:        rec.Tag,
	})
	if err != nil {
		// secrets.ErrIntegrity: corrupt record, callers treat it as absent.
		return nil, err
	}

	return &Credential{
		TeamsUserID:        rec.TeamsUserID,
		AtlassianAccountID: rec.AtlassianAccountID,
		CloudID:            rec.CloudID,
		RefreshToken:       refresh,
	}, nil
}
