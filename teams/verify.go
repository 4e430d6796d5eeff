package teams

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const hmacPrefix = "HMAC "

// VerifySignature authenticates a Teams outgoing-webhook request. The
// Authorization header must be "HMAC <base64>" where the signature is
// HMAC-SHA256 over the exact raw body bytes with the shared secret. Returns
// false on any malformed input; it never panics.
func VerifySignature(rawBody []byte, authHeader, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(authHeader, hmacPrefix) {
		return false
	}

	provided, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authHeader[len(hmacPrefix):]))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(provided, mac.Sum(nil))
}
