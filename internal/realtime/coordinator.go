package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type Options struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	SendBuffer     int
	ReconnectTTL   time.Duration
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ReconnectTTL <= 0 {
		o.ReconnectTTL = 10 * time.Minute
	}
	return o
}

type handlerFunc func(ctx context.Context, c *Client, raw json.RawMessage) (any, error)

// Coordinator owns room membership and is the only emitter of room events.
type Coordinator struct {
	hub       *Hub
	bus       Bus
	throttle  *StatsThrottler
	reconnect ReconnectStore
	auth      *Authenticator

	agendas  *service.AgendaService
	votes    *service.VoteService
	tokens   *service.EntryTokenService
	sessions *service.SessionService

	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	handlers map[string]handlerFunc
}

type CoordinatorDeps struct {
	Hub          *Hub
	Bus          Bus
	StatsBuffer  StatsBuffer
	StatsBackend string
	StatsWindow  time.Duration
	Reconnect    ReconnectStore
	Auth         *Authenticator
	Agendas      *service.AgendaService
	Votes        *service.VoteService
	Tokens       *service.EntryTokenService
	Sessions     *service.SessionService
	Logger       *slog.Logger
}

func NewCoordinator(deps CoordinatorDeps, opts Options) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	bus := deps.Bus
	if bus == nil {
		bus = NewLocalBus(hub)
	}
	buffer := deps.StatsBuffer
	if buffer == nil {
		buffer = NewLocalStatsBuffer()
		deps.StatsBackend = "local"
	}
	reconnect := deps.Reconnect
	if reconnect == nil {
		reconnect = NewInMemoryReconnectStore()
	}
	c := &Coordinator{
		hub:       hub,
		bus:       bus,
		reconnect: reconnect,
		auth:      deps.Auth,
		agendas:   deps.Agendas,
		votes:     deps.Votes,
		tokens:    deps.Tokens,
		sessions:  deps.Sessions,
		opts:      opts.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
	c.throttle = NewStatsThrottler(buffer, deps.StatsWindow, deps.StatsBackend, logger, c.flushStats)
	c.handlers = map[string]handlerFunc{
		EventJoinSession:    handle(c.onJoinSession),
		EventStageUpdate:    handle(c.onStageUpdate),
		EventVoteCast:       handle(c.onVoteCast),
		EventVoteEnd:        handle(c.onVoteEnd),
		EventResultPublish:  handle(c.onResultPublish),
		EventStatsRequest:   handle(c.onStatsRequest),
		EventTokensRevoke:   handle(c.onTokensRevoke),
		EventStadiumControl: handle(c.onStadiumControl),
	}
	return c
}

func handle[P payload](fn func(context.Context, *Client, P) (any, error)) handlerFunc {
	return func(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
		p, err := decodePayload[P](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, c, p)
	}
}

func (co *Coordinator) Hub() *Hub { return co.hub }

// Close stops pending statistics flushes.
func (co *Coordinator) Close() {
	co.throttle.Close()
}

func (co *Coordinator) dispatch(ctx context.Context, c *Client, env Envelope) {
	h, ok := co.handlers[env.Event]
	var (
		result any
		err    error
	)
	if !ok {
		err = fmt.Errorf("%w: unknown event %q", domain.ErrInvalidInput, env.Event)
	} else {
		result, err = h(ctx, c, env.Data)
	}
	if err != nil {
		co.replyError(ctx, c, env, err)
		return
	}
	if env.ID != "" {
		c.emit(EventAck, AckPayload{ID: env.ID, Success: true, Result: result})
	}
}

func (co *Coordinator) replyError(ctx context.Context, c *Client, env Envelope, err error) {
	code := domain.Code(err)
	message := err.Error()
	if !domain.IsDomainError(err) {
		co.logger.ErrorContext(ctx, "websocket action failed", "action", env.Event, "connection_id", c.id, "error", err)
		message = "temporarily unavailable, retry"
	}
	c.emit(ErrorEventFor(env.Event), ErrorPayload{Action: env.Event, Code: code, Message: message})
	if env.ID != "" {
		c.emit(EventAck, AckPayload{ID: env.ID, Success: false, Message: message})
	}
}

func (co *Coordinator) actor(c *Client) (service.Actor, error) {
	if c.identity.Actor == nil {
		return service.Actor{}, fmt.Errorf("%w: admin credential required", domain.ErrUnauthorized)
	}
	return *c.identity.Actor, nil
}

func (co *Coordinator) onJoinSession(ctx context.Context, c *Client, p JoinSessionPayload) (any, error) {
	if pid := c.identity.Participant; pid != nil && !sameSession(pid.SessionID, p.SessionID) {
		return nil, fmt.Errorf("%w: credential belongs to another session", domain.ErrForbidden)
	}
	session, err := co.sessions.Public(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	room := co.joinRoom(ctx, c, session.ID)
	joined := JoinedPayload{SessionID: session.ID, Room: room, Role: string(c.identity.Role)}
	c.emit(EventSessionJoined, joined)
	return joined, nil
}

func (co *Coordinator) joinRoom(ctx context.Context, c *Client, sessionID string) string {
	room := RoomName(sessionID)
	co.hub.join(c, room)
	membership := Membership{SessionID: sessionID, Role: c.identity.Role}
	if c.identity.Participant != nil {
		membership.ParticipantID = c.identity.Participant.ParticipantID
	}
	if err := co.reconnect.Save(ctx, c.resumeKey, membership, co.opts.ReconnectTTL); err != nil {
		co.logger.WarnContext(ctx, "save reconnect membership failed", "connection_id", c.id, "error", err)
	}
	return room
}

func (co *Coordinator) onStageUpdate(ctx context.Context, c *Client, p StageUpdatePayload) (any, error) {
	actor, err := co.actor(c)
	if err != nil {
		return nil, err
	}
	stage, _ := domain.ParseStage(p.Stage)
	change, err := co.agendas.Transition(ctx, actor, p.AgendaID, stage)
	if err != nil {
		return nil, err
	}
	co.AnnounceStage(ctx, change)
	return change.Agenda, nil
}

func (co *Coordinator) onVoteEnd(ctx context.Context, c *Client, p AgendaRefPayload) (any, error) {
	actor, err := co.actor(c)
	if err != nil {
		return nil, err
	}
	change, err := co.agendas.End(ctx, actor, p.AgendaID)
	if err != nil {
		return nil, err
	}
	co.AnnounceStage(ctx, change)
	return change.Agenda, nil
}

func (co *Coordinator) onResultPublish(ctx context.Context, c *Client, p AgendaRefPayload) (any, error) {
	actor, err := co.actor(c)
	if err != nil {
		return nil, err
	}
	change, err := co.agendas.Publish(ctx, actor, p.AgendaID)
	if err != nil {
		return nil, err
	}
	return co.AnnounceStage(ctx, change), nil
}

func (co *Coordinator) onVoteCast(ctx context.Context, c *Client, p VoteCastPayload) (any, error) {
	pid := c.identity.Participant
	if pid == nil {
		return nil, fmt.Errorf("%w: participant credential required", domain.ErrUnauthorized)
	}
	result, err := co.votes.Cast(ctx, pid.ParticipantID, p.AgendaID, p.Choice, "websocket")
	if err != nil {
		return nil, err
	}
	confirmed := VoteConfirmedPayload{Success: true, Vote: VoteBrief{
		ID:       result.Vote.ID,
		AgendaID: result.Vote.AgendaID,
		Choice:   result.Vote.Choice,
		VotedAt:  result.Vote.CreatedAt.UTC().Format(time.RFC3339Nano),
	}}
	c.emit(EventVoteConfirmed, confirmed)
	co.VoteRecorded(ctx, result)
	return confirmed.Vote, nil
}

func (co *Coordinator) onStatsRequest(ctx context.Context, c *Client, p AgendaRefPayload) (any, error) {
	stats, err := co.votes.Statistics(ctx, p.AgendaID)
	if err != nil {
		return nil, err
	}
	c.emit(EventStatsResponse, stats)
	return stats, nil
}

func (co *Coordinator) onTokensRevoke(ctx context.Context, c *Client, p SessionRefPayload) (any, error) {
	actor, err := co.actor(c)
	if err != nil {
		return nil, err
	}
	n, err := co.tokens.RevokeAll(ctx, actor, p.SessionID)
	if err != nil {
		return nil, err
	}
	co.AuthRequired(ctx, p.SessionID, "Re-authentication required for important vote")
	return map[string]int64{"revoked": n}, nil
}

func (co *Coordinator) onStadiumControl(ctx context.Context, c *Client, p StadiumControlPayload) (any, error) {
	actor, err := co.actor(c)
	if err != nil {
		return nil, err
	}
	if err := co.sessions.Authorize(ctx, actor, p.SessionID); err != nil {
		return nil, err
	}
	co.StadiumControl(ctx, p.SessionID, p.Action)
	return nil, nil
}

// AnnounceStage broadcasts the events that follow a stage change and returns
// the published statistics when the agenda was announced.
func (co *Coordinator) AnnounceStage(ctx context.Context, change *service.StageChange) *domain.Statistics {
	agenda := change.Agenda
	room := RoomName(agenda.SessionID)
	ts := change.At.UTC().Format(time.RFC3339Nano)

	if agenda.Stage == domain.StageEnded && change.Changed {
		endedAt := ts
		if agenda.EndedAt != nil {
			endedAt = agenda.EndedAt.UTC().Format(time.RFC3339Nano)
		}
		co.broadcast(ctx, room, EventVoteEnded, VoteEndedPayload{AgendaID: agenda.ID, EndedAt: endedAt})
	}
	if change.Changed {
		co.broadcast(ctx, room, EventStageChanged, StageChangedPayload{AgendaID: agenda.ID, Stage: agenda.Stage, Timestamp: ts})
	}
	if agenda.Stage != domain.StageAnnounced {
		return nil
	}
	stats := change.Stats
	if stats == nil {
		var err error
		if stats, err = co.votes.Statistics(ctx, agenda.ID); err != nil {
			co.logger.ErrorContext(ctx, "compute published statistics failed", "agenda_id", agenda.ID, "error", err)
			return nil
		}
	}
	co.broadcast(ctx, room, EventResultPublished, ResultPublishedPayload{AgendaID: agenda.ID, Stats: stats, AnnouncedAt: ts})
	return stats
}

type pendingStats struct {
	Room  string             `json:"room"`
	Stats *domain.Statistics `json:"stats"`
}

// VoteRecorded schedules a throttled stats:updated for the vote's agenda.
func (co *Coordinator) VoteRecorded(ctx context.Context, result *service.CastResult) {
	stats, err := co.votes.Statistics(ctx, result.Vote.AgendaID)
	if err != nil {
		co.logger.WarnContext(ctx, "compute statistics after cast failed", "agenda_id", result.Vote.AgendaID, "error", err)
		return
	}
	raw, err := json.Marshal(pendingStats{Room: RoomName(result.SessionID), Stats: stats})
	if err != nil {
		return
	}
	co.throttle.Offer(ctx, result.Vote.AgendaID, raw)
}

func (co *Coordinator) flushStats(ctx context.Context, agendaID string, value []byte) {
	var pending pendingStats
	if err := json.Unmarshal(value, &pending); err != nil {
		co.logger.WarnContext(ctx, "discarding malformed pending statistics", "agenda_id", agendaID, "error", err)
		return
	}
	co.broadcast(ctx, pending.Room, EventStatsUpdated, pending.Stats)
}

func (co *Coordinator) AuthRequired(ctx context.Context, sessionID, message string) {
	co.broadcast(ctx, RoomName(sessionID), EventAuthRequired, AuthRequiredPayload{
		Message:   message,
		Timestamp: co.now().UTC().Format(time.RFC3339Nano),
	})
}

func (co *Coordinator) SettingsUpdated(ctx context.Context, sessionID string, delta any) {
	co.broadcast(ctx, RoomName(sessionID), EventSessionSettingsUpdate, delta)
}

func (co *Coordinator) StadiumControl(ctx context.Context, sessionID, action string) {
	co.broadcast(ctx, RoomName(sessionID), EventStadiumControl, StadiumControlBroadcast{
		Action:    action,
		Timestamp: co.now().UTC().Format(time.RFC3339Nano),
	})
}

func (co *Coordinator) broadcast(ctx context.Context, room, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		co.logger.ErrorContext(ctx, "encode broadcast failed", "event", event, "error", err)
		return
	}
	if err := co.bus.Publish(ctx, room, event, frame); err != nil {
		co.logger.ErrorContext(ctx, "publish broadcast failed", "event", event, "room", room, "error", err)
		return
	}
	co.logger.DebugContext(ctx, "broadcast", "event", event, "room", room)
}

func sameSession(a, b string) bool {
	return RoomName(a) == RoomName(b)
}

var errCredentialRejected = errors.New("credential rejected")

func (co *Coordinator) connected(ctx context.Context, role Role, delta int64) {
	observability.RecordConnectionDelta(ctx, string(role), delta)
}
