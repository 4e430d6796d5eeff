package teams

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"jira-facilities-bot/store"
)

// Dispatcher is the command engine behind both inbound channels.
type Dispatcher interface {
	Handle(ctx context.Context, teamsUserID, text string) string
	StartLogin(ctx context.Context, teamsUserID string) (string, error)
	Authorize(ctx context.Context, state, code string) error
}

// Handler exposes the two inbound channels and the OAuth redirect legs over
// HTTP. Route registration happens in main.
type Handler struct {
	dispatcher     Dispatcher
	outgoingSecret string
}

func NewHandler(d Dispatcher, outgoingSecret string) *Handler {
	return &Handler{dispatcher: d, outgoingSecret: outgoingSecret}
}

type textReply struct {
	Text string `json:"text"`
}

type activityReply struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Messages handles the Bot Framework bot-turn channel. Transport-level
// authentication of this channel belongs to the Bot Framework connector;
// here the activity is decoded, normalized and dispatched.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var activity Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		log.Printf("[teams] failed to decode activity: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if activity.Type != "message" || activity.From.ID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	reply := h.dispatcher.Handle(r.Context(), activity.From.ID, activity.Text)
	writeJSON(w, http.StatusOK, activityReply{Type: "message", Text: reply})
}

// Outgoing handles the signed Teams outgoing-webhook channel. The HMAC check
// runs over the exact raw body bytes before anything else.
func (h *Handler) Outgoing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !VerifySignature(rawBody, r.Header.Get("Authorization"), h.outgoingSecret) {
		log.Printf("[teams] outgoing webhook rejected: invalid HMAC signature")
		writeJSON(w, http.StatusUnauthorized, textReply{Text: "Assinatura inválida (HMAC)."})
		return
	}

	var req OutgoingRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, textReply{Text: "Payload inválido."})
		return
	}

	reply := h.dispatcher.Handle(r.Context(), req.SenderID(), req.Text)
	writeJSON(w, http.StatusOK, textReply{Text: reply})
}

// AuthStart generates a login link for the given Teams user and redirects
// the browser to the Atlassian consent screen.
func (h *Handler) AuthStart(w http.ResponseWriter, r *http.Request) {
	teamsUserID := r.URL.Query().Get("teamsUserId")
	if teamsUserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "teamsUserId requerido"})
		return
	}

	authURL, err := h.dispatcher.StartLogin(r.Context(), teamsUserID)
	if err != nil {
		log.Printf("[teams] failed to start login for %s: %v", teamsUserID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// AuthCallback completes the OAuth flow: it consumes the pending
// authorization matching the state, exchanges the code and stores the
// resulting credential.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "Faltando code/state", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.Authorize(r.Context(), state, code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "state inválido", http.StatusBadRequest)
			return
		}
		log.Printf("[teams] authorization callback failed: %v", err)
		http.Error(w, "falha ao conectar ao Jira", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<script>window.close && window.close();</script><p>Conectado! Pode voltar ao Teams.</p>"))
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "Jira Facilities Bot"})
}
