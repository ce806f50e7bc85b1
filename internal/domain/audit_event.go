package domain

import "time"

type AuditEventType string

const (
	AuditParticipantAuthenticated AuditEventType = "PARTICIPANT_AUTHENTICATED"
	AuditVoteCast                 AuditEventType = "VOTE_CAST"
	AuditStageChanged             AuditEventType = "STAGE_CHANGED"
	AuditTokensRevoked            AuditEventType = "TOKENS_REVOKED"
	AuditParticipantsReset        AuditEventType = "PARTICIPANTS_RESET"
	AuditSessionDeleted           AuditEventType = "SESSION_DELETED"
	AuditAdminLogin               AuditEventType = "ADMIN_LOGIN"
)

type AuditEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	EventType     AuditEventType `gorm:"size:64;index;not null" json:"event_type"`
	SessionID     *string        `gorm:"size:36;index" json:"session_id,omitempty"`
	ParticipantID *string        `gorm:"size:36" json:"participant_id,omitempty"`
	EventData     string         `gorm:"type:text" json:"event_data,omitempty"`
	IP            string         `gorm:"size:64" json:"ip,omitempty"`
	UserAgent     string         `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
}
