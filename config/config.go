package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort   = "3000"
	defaultDBName = "jirabot"
)

type Config struct {
	AtlassianClientID     string
	AtlassianClientSecret string
	AtlassianRedirectURI  string
	AtlassianScopes       string
	OutgoingSecret        string
	CryptoKey             []byte // decoded, always 32 bytes
	MongoDBURI            string
	DatabaseName          string
	AppBaseURL            string
	Port                  string
	AllowedCIDRs          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	required := []string{
		"ATLASSIAN_CLIENT_ID",
		"ATLASSIAN_CLIENT_SECRET",
		"ATLASSIAN_REDIRECT_URI",
		"ATLASSIAN_SCOPES",
		"TEAMS_OUTGOING_SECRET",
		"CRYPTO_SECRET",
		"MONGODB_URI",
		"APP_BASE_URL",
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	key, err := base64.StdEncoding.DecodeString(os.Getenv("CRYPTO_SECRET"))
	if err != nil {
		return nil, fmt.Errorf("CRYPTO_SECRET must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CRYPTO_SECRET must be 32 bytes in base64, got %d", len(key))
	}

	return &Config{
		AtlassianClientID:     os.Getenv("ATLASSIAN_CLIENT_ID"),
		AtlassianClientSecret: os.Getenv("ATLASSIAN_CLIENT_SECRET"),
		AtlassianRedirectURI:  os.Getenv("ATLASSIAN_REDIRECT_URI"),
		AtlassianScopes:       os.Getenv("ATLASSIAN_SCOPES"),
		OutgoingSecret:        os.Getenv("TEAMS_OUTGOING_SECRET"),
		CryptoKey:             key,
		MongoDBURI:            os.Getenv("MONGODB_URI"),
		DatabaseName:          getEnv("DATABASE_NAME", defaultDBName),
		AppBaseURL:            strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
		Port:                  getEnv("PORT", defaultPort),
		AllowedCIDRs:          os.Getenv("ALLOWED_CIDRS"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
