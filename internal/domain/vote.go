package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Vote struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID     string    `gorm:"size:36;index;not null" json:"session_id"`
	ParticipantID string    `gorm:"size:36;not null;uniqueIndex:idx_votes_participant_agenda" json:"participant_id"`
	AgendaID      string    `gorm:"size:36;not null;uniqueIndex:idx_votes_participant_agenda;index" json:"agenda_id"`
	Choice        string    `gorm:"size:500;not null" json:"choice"`
	CreatedAt     time.Time `json:"created_at"`
}

func (v *Vote) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Statistics is the aggregate view of an agenda's ledger.
type Statistics struct {
	AgendaID          string           `json:"agendaId"`
	Title             string           `json:"title"`
	Type              AgendaType       `json:"type"`
	Options           []string         `json:"options,omitempty"`
	TotalVotes        int64            `json:"totalVotes"`
	ApproveCount      int64            `json:"approveCount"`
	RejectCount       int64            `json:"rejectCount"`
	AbstainCount      int64            `json:"abstainCount"`
	VoteCounts        map[string]int64 `json:"voteCounts"`
	TotalParticipants int64            `json:"totalParticipants"`
	TurnoutPercentage float64          `json:"turnoutPercentage"`
}
