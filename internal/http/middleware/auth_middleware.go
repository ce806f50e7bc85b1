package middleware

import (
	"context"
	"net/http"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/security"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type contextKey string

const (
	ParticipantContextKey contextKey = "participant"
	ActorContextKey       contextKey = "actor"
)

// ParticipantAuth requires a participant credential from the Authorization
// header or the token query parameter.
func ParticipantAuth(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := security.CredentialFromRequest(r)
			if raw == "" {
				observability.RecordCredentialValidation(r.Context(), "participant", "missing", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", nil)
				return
			}
			claims, err := jwtMgr.ParseParticipantToken(raw)
			if err != nil {
				observability.RecordCredentialValidation(r.Context(), "participant", "invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential", nil)
				return
			}
			observability.RecordCredentialValidation(r.Context(), "participant", "valid", source)
			id := &security.ParticipantIdentity{
				ParticipantID: claims.Subject,
				SessionID:     claims.SessionID,
				EntryTokenID:  claims.EntryTokenID,
				DisplayName:   claims.DisplayName,
				Anonymous:     claims.Anonymous,
			}
			ctx := context.WithValue(r.Context(), ParticipantContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminAuth(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := security.CredentialFromRequest(r)
			if raw == "" {
				observability.RecordCredentialValidation(r.Context(), "admin", "missing", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", nil)
				return
			}
			claims, err := jwtMgr.ParseAdminToken(raw)
			if err != nil {
				observability.RecordCredentialValidation(r.Context(), "admin", "invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential", nil)
				return
			}
			observability.RecordCredentialValidation(r.Context(), "admin", "valid", source)
			actor := service.Actor{
				UserID:   claims.Subject,
				Username: claims.Username,
				Role:     domain.Role(claims.Role),
			}
			ctx := context.WithValue(r.Context(), ActorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ParticipantFromContext(ctx context.Context) (*security.ParticipantIdentity, bool) {
	p, ok := ctx.Value(ParticipantContextKey).(*security.ParticipantIdentity)
	return p, ok
}

func ActorFromContext(ctx context.Context) (service.Actor, bool) {
	a, ok := ctx.Value(ActorContextKey).(service.Actor)
	return a, ok
}
