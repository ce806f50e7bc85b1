package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntryToken struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID         string     `gorm:"size:36;index;not null" json:"session_id"`
	DeviceFingerprint *string    `gorm:"size:500" json:"-"`
	BoundAt           *time.Time `json:"bound_at,omitempty"`
	Revoked           bool       `gorm:"not null;default:false;index" json:"revoked"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (t *EntryToken) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *EntryToken) Bound() bool {
	return t.DeviceFingerprint != nil && *t.DeviceFingerprint != ""
}
