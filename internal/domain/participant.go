package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Participant struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID          string     `gorm:"size:36;index;not null" json:"session_id"`
	TokenID            *string    `gorm:"size:36;uniqueIndex" json:"token_id,omitempty"`
	DeviceFingerprint  string     `gorm:"size:500;index;not null" json:"-"`
	DisplayName        *string    `gorm:"size:100" json:"display_name,omitempty"`
	IsAnonymous        bool       `gorm:"not null;default:false" json:"is_anonymous"`
	AccessCodeVerified bool       `gorm:"not null;default:false" json:"access_code_verified"`
	Latitude           *float64   `json:"-"`
	Longitude          *float64   `json:"-"`
	LastActiveAt       *time.Time `json:"last_active_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (p *Participant) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
