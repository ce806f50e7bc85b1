package realtime

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/security"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

// Authenticator turns a handshake credential into an Identity. Participant
// credentials are tried first, then admin credentials.
type Authenticator struct {
	jwt *security.JWTManager
}

func NewAuthenticator(jwt *security.JWTManager) *Authenticator {
	return &Authenticator{jwt: jwt}
}

func (a *Authenticator) Authenticate(ctx context.Context, raw, source string) (Identity, error) {
	if raw == "" {
		observability.RecordCredentialValidation(ctx, "websocket", "anonymous", source)
		return Identity{Role: RoleObserver}, nil
	}
	if claims, err := a.jwt.ParseParticipantToken(raw); err == nil {
		observability.RecordCredentialValidation(ctx, "websocket", "participant", source)
		return Identity{Role: RoleParticipant, Participant: &security.ParticipantIdentity{
			ParticipantID: claims.Subject,
			SessionID:     claims.SessionID,
			EntryTokenID:  claims.EntryTokenID,
			DisplayName:   claims.DisplayName,
			Anonymous:     claims.Anonymous,
		}}, nil
	}
	if claims, err := a.jwt.ParseAdminToken(raw); err == nil {
		observability.RecordCredentialValidation(ctx, "websocket", "admin", source)
		return Identity{Role: RoleAdmin, Actor: &service.Actor{
			UserID:   claims.Subject,
			Username: claims.Username,
			Role:     domain.Role(claims.Role),
		}}, nil
	}
	observability.RecordCredentialValidation(ctx, "websocket", "invalid", source)
	return Identity{}, errCredentialRejected
}

func (co *Coordinator) upgrader() websocket.Upgrader {
	allowed := co.opts.AllowedOrigins
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
				return true
			}
			if slices.Contains(allowed, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// ServeHTTP authenticates the handshake, upgrades the connection and runs it
// until the peer goes away. An invalid credential is refused with 401 before
// the upgrade.
func (co *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, source := security.CredentialFromRequest(r)
	identity, err := co.auth.Authenticate(r.Context(), raw, source)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential", nil)
		return
	}

	// Resolve the previous membership before upgrading so a stale key is
	// simply ignored.
	resumeFrom := strings.TrimSpace(r.URL.Query().Get("resume"))
	var restored *Membership
	if resumeFrom != "" {
		m, err := co.reconnect.Load(r.Context(), resumeFrom)
		if err != nil {
			co.logger.WarnContext(r.Context(), "load reconnect membership failed", "error", err)
		}
		if m != nil && membershipMatches(*m, identity) {
			restored = m
		}
	}

	up := co.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		co.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	// The request context ends with the handler; connection work uses its own.
	ctx := context.WithoutCancel(r.Context())
	client := newClient(uuid.NewString(), uuid.NewString(), identity, conn, co.opts.SendBuffer, co.logger)
	co.hub.register(client)
	co.connected(ctx, identity.Role, 1)
	defer func() {
		co.hub.unregister(client)
		co.connected(ctx, identity.Role, -1)
	}()

	client.emit(EventConnectionReady, ReadyPayload{
		ConnectionID: client.id,
		ResumeKey:    client.resumeKey,
		Anonymous:    identity.Anonymous(),
		Role:         string(identity.Role),
	})
	if restored != nil {
		if err := co.reconnect.Delete(ctx, resumeFrom); err != nil {
			co.logger.WarnContext(ctx, "delete consumed resume key failed", "connection_id", client.id, "error", err)
		}
		room := co.joinRoom(ctx, client, restored.SessionID)
		client.emit(EventSessionRejoined, JoinedPayload{SessionID: restored.SessionID, Room: room, Role: string(identity.Role)})
	}

	go client.writePump(co.opts.PingInterval)
	client.readPump(ctx, co.opts.PongWait, co.dispatch)
}

// membershipMatches keeps a resume key from moving a connection into a room
// its credential could not join directly.
func membershipMatches(m Membership, id Identity) bool {
	if m.Role != id.Role {
		return false
	}
	if id.Participant != nil {
		return m.ParticipantID == id.Participant.ParticipantID && sameSession(m.SessionID, id.Participant.SessionID)
	}
	return true
}
