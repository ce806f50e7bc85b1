package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

// Inbound events.
const (
	EventJoinSession    = "join:session"
	EventStageUpdate    = "stage:update"
	EventVoteCast       = "vote:cast"
	EventVoteEnd        = "vote:end"
	EventResultPublish  = "result:publish"
	EventStatsRequest   = "stats:request"
	EventTokensRevoke   = "tokens:revoke"
	EventStadiumControl = "stadium:control"
)

// Outbound events.
const (
	EventConnectionReady       = "connection:ready"
	EventSessionJoined         = "session:joined"
	EventSessionRejoined       = "session:rejoined"
	EventAck                   = "ack"
	EventStageChanged          = "stage:changed"
	EventVoteConfirmed         = "vote:confirmed"
	EventStatsUpdated          = "stats:updated"
	EventStatsResponse         = "stats:response"
	EventVoteEnded             = "vote:ended"
	EventResultPublished       = "result:published"
	EventAuthRequired          = "auth:required"
	EventSessionSettingsUpdate = "session:settings:update"
)

const (
	StadiumActionReset    = "reset"
	StadiumActionShowLogo = "show_logo"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    string          `json:"id,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	ID    string `json:"id,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

// ErrorEventFor returns the unicast error event for an inbound action, so
// "vote:cast" reports on "vote:error".
func ErrorEventFor(action string) string {
	prefix, _, _ := strings.Cut(action, ":")
	if prefix == "" {
		prefix = "connection"
	}
	return prefix + ":error"
}

type ErrorPayload struct {
	Action  string `json:"action"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AckPayload struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

type ReadyPayload struct {
	ConnectionID string `json:"connectionId"`
	ResumeKey    string `json:"resumeKey"`
	Anonymous    bool   `json:"anonymous"`
	Role         string `json:"role"`
}

type JoinedPayload struct {
	SessionID string `json:"sessionId"`
	Room      string `json:"room"`
	Role      string `json:"role"`
}

type StageChangedPayload struct {
	AgendaID  string       `json:"agendaId"`
	Stage     domain.Stage `json:"stage"`
	Timestamp string       `json:"timestamp"`
}

type VoteConfirmedPayload struct {
	Success bool      `json:"success"`
	Vote    VoteBrief `json:"vote"`
}

type VoteBrief struct {
	ID       string `json:"id"`
	AgendaID string `json:"agendaId"`
	Choice   string `json:"choice"`
	VotedAt  string `json:"votedAt"`
}

type VoteEndedPayload struct {
	AgendaID string `json:"agendaId"`
	EndedAt  string `json:"endedAt"`
}

type ResultPublishedPayload struct {
	AgendaID    string             `json:"agendaId"`
	Stats       *domain.Statistics `json:"stats"`
	AnnouncedAt string             `json:"announcedAt"`
}

type AuthRequiredPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type StadiumControlBroadcast struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// payload is implemented by every inbound event body.
type payload interface {
	validate() error
}

type JoinSessionPayload struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId,omitempty"`
	Role          string `json:"role,omitempty"`
}

func (p JoinSessionPayload) validate() error {
	return required("sessionId", p.SessionID)
}

type StageUpdatePayload struct {
	AgendaID string `json:"agendaId"`
	Stage    string `json:"stage"`
}

func (p StageUpdatePayload) validate() error {
	if err := required("agendaId", p.AgendaID); err != nil {
		return err
	}
	if _, ok := domain.ParseStage(p.Stage); !ok {
		return fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidStage, p.Stage)
	}
	return nil
}

type VoteCastPayload struct {
	AgendaID string `json:"agendaId"`
	Choice   string `json:"choice"`
}

func (p VoteCastPayload) validate() error {
	return required("agendaId", p.AgendaID)
}

type AgendaRefPayload struct {
	AgendaID string `json:"agendaId"`
}

func (p AgendaRefPayload) validate() error {
	return required("agendaId", p.AgendaID)
}

type SessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

func (p SessionRefPayload) validate() error {
	return required("sessionId", p.SessionID)
}

type StadiumControlPayload struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
}

func (p StadiumControlPayload) validate() error {
	if err := required("sessionId", p.SessionID); err != nil {
		return err
	}
	return ValidateStadiumAction(p.Action)
}

func ValidateStadiumAction(action string) error {
	switch action {
	case StadiumActionReset, StadiumActionShowLogo:
		return nil
	default:
		return fmt.Errorf("%w: unknown stadium action %q", domain.ErrInvalidInput, action)
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	return nil
}

func decodePayload[P payload](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 {
		return p, fmt.Errorf("%w: missing payload", domain.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: malformed payload", domain.ErrInvalidInput)
	}
	if err := p.validate(); err != nil {
		return p, err
	}
	return p, nil
}

// RoomName maps a session id to its room. Session ids match case-insensitively.
func RoomName(sessionID string) string {
	return "session:" + strings.ToLower(strings.TrimSpace(sessionID))
}
