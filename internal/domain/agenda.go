package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AgendaType string

const (
	AgendaTypeBinary         AgendaType = "BINARY_CHOICE"
	AgendaTypeMultipleChoice AgendaType = "MULTI_CHOICE"
	AgendaTypeFreeText       AgendaType = "FREE_TEXT"
)

const (
	ChoiceApprove = "approve"
	ChoiceReject  = "reject"
	ChoiceAbstain = "abstain"
)

const MaxFreeTextChoiceLength = 500

type Agenda struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID    string     `gorm:"size:36;index;not null" json:"session_id"`
	Title        string     `gorm:"size:300;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`
	Type         AgendaType `gorm:"size:32;not null;default:BINARY_CHOICE" json:"type"`
	Options      []string   `gorm:"serializer:json" json:"options,omitempty"`
	Stage        Stage      `gorm:"size:16;not null;default:pending" json:"stage"`
	DisplayOrder int        `gorm:"not null;default:0" json:"display_order"`
	IsImportant  bool       `gorm:"not null;default:false" json:"is_important"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (a *Agenda) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ChoiceOptions returns the legal choices for the agenda. Free-text agendas
// have no fixed option list and return nil.
func (a *Agenda) ChoiceOptions() []string {
	switch a.Type {
	case AgendaTypeBinary:
		return []string{ChoiceApprove, ChoiceReject, ChoiceAbstain}
	case AgendaTypeMultipleChoice:
		return a.Options
	default:
		return nil
	}
}
