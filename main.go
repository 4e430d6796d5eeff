package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"jira-facilities-bot/atlassian"
	"jira-facilities-bot/commands"
	"jira-facilities-bot/config"
	"jira-facilities-bot/replies"
	"jira-facilities-bot/secrets"
	"jira-facilities-bot/store"
	"jira-facilities-bot/teams"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	if err := replies.Load(""); err != nil {
		log.Fatalf("failed to load replies: %v", err)
	}

	box, err := secrets.NewBox(cfg.CryptoKey)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	db, err := store.Connect(cfg.MongoDBURI, cfg.DatabaseName, box)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	}()

	authClient := atlassian.NewAuthClient(
		cfg.AtlassianClientID,
		cfg.AtlassianClientSecret,
		cfg.AtlassianRedirectURI,
		cfg.AtlassianScopes,
	)
	jiraClient := atlassian.NewClient()

	dispatcher := commands.NewDispatcher(db, authClient, jiraClient, cfg.AppBaseURL)
	handler := teams.NewHandler(dispatcher, cfg.OutgoingSecret)

	// Both inbound channels sit behind the optional CIDR allowlist; the
	// OAuth redirect legs must stay reachable from the user's browser.
	http.Handle("/api/messages", ipAllowlist(cfg.AllowedCIDRs, http.HandlerFunc(handler.Messages)))
	http.Handle("/api/teams/outgoing", ipAllowlist(cfg.AllowedCIDRs, http.HandlerFunc(handler.Outgoing)))
	http.HandleFunc("/api/auth/start", handler.AuthStart)
	http.HandleFunc("/api/auth/callback", handler.AuthCallback)
	http.HandleFunc("/api/health", handler.Health)

	log.Printf("jira-facilities-bot listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
