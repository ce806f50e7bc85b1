package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleVoteManager Role = "VOTE_MANAGER"
)

const (
	DefaultMaxSessions               = 5
	DefaultMaxAgendasPerSession      = 20
	DefaultMaxParticipantsPerSession = 500
)

type User struct {
	ID                        string    `gorm:"primaryKey;size:36" json:"id"`
	Username                  string    `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash              string    `gorm:"size:255;not null" json:"-"`
	Role                      Role      `gorm:"size:32;not null;default:VOTE_MANAGER" json:"role"`
	Active                    bool      `gorm:"not null;default:true" json:"active"`
	MaxSessions               int       `gorm:"not null;default:5" json:"max_sessions"`
	MaxAgendasPerSession      int       `gorm:"not null;default:20" json:"max_agendas_per_session"`
	MaxParticipantsPerSession int       `gorm:"not null;default:500" json:"max_participants_per_session"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
