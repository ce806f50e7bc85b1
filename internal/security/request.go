package security

import (
	"net/http"
	"strings"
)

// CredentialFromRequest returns the bearer credential of r and where it was
// found. Browsers cannot set headers on websocket handshakes, so the token
// query parameter is accepted as a fallback.
func CredentialFromRequest(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if raw := strings.TrimSpace(auth[7:]); raw != "" {
			return raw, "bearer"
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("token")); raw != "" {
		return raw, "query"
	}
	return "", "none"
}
