package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntryMode string

const (
	EntryModeUniqueToken EntryMode = "UNIQUE_TOKEN"
	EntryModeSharedLink  EntryMode = "SHARED_LINK"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID                  string        `gorm:"primaryKey;size:36" json:"id"`
	OwnerID             *string       `gorm:"size:36;index" json:"owner_id,omitempty"`
	Name                string        `gorm:"size:200;not null" json:"name"`
	Status              SessionStatus `gorm:"size:16;not null;default:pending" json:"status"`
	EntryMode           EntryMode     `gorm:"size:16;not null;default:UNIQUE_TOKEN" json:"entry_mode"`
	AccessCode          *string       `gorm:"size:4" json:"-"`
	AccessCodeExpiresAt *time.Time    `json:"access_code_expires_at,omitempty"`
	GeofenceEnabled     bool          `gorm:"not null;default:false" json:"geofence_enabled"`
	Latitude            *float64      `json:"latitude,omitempty"`
	Longitude           *float64      `json:"longitude,omitempty"`
	RadiusMeters        *float64      `json:"radius_meters,omitempty"`
	StrictDeviceCheck   bool          `gorm:"not null;default:false" json:"strict_device_check"`
	AllowAnonymous      bool          `gorm:"not null;default:false" json:"allow_anonymous"`
	StadiumTheme        string        `gorm:"size:32;default:default" json:"stadium_theme"`
	VoterTheme          string        `gorm:"size:32;default:default" json:"voter_theme"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// HasGeofence reports whether the session enforces a location check.
// A session with geofencing on but no center or radius is treated as open.
func (s *Session) HasGeofence() bool {
	return s.GeofenceEnabled && s.Latitude != nil && s.Longitude != nil && s.RadiusMeters != nil
}

// OwnedBy reports whether userID may control the session for a non-super role.
func (s *Session) OwnedBy(userID string) bool {
	return s.OwnerID != nil && *s.OwnerID == userID
}

// NormalizeID folds a client supplied session id onto the stored form.
// Ids are generated as lowercase uuids.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
