package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
)

// SessionSettings is the subset of session fields an owner may change while
// the session is live.
type SessionSettings struct {
	Name              *string
	GeofenceEnabled   *bool
	Latitude          *float64
	Longitude         *float64
	RadiusMeters      *float64
	StrictDeviceCheck *bool
	AllowAnonymous    *bool
	StadiumTheme      *string
	VoterTheme        *string
	Status            *domain.SessionStatus
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	UpdateSettings(ctx context.Context, id string, settings SessionSettings) (*domain.Session, error)
	SetAccessCode(ctx context.Context, id, code string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	observe(ctx, "session", "create", err)
	return err
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := notFound(r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error)
	observe(ctx, "session", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) UpdateSettings(ctx context.Context, id string, settings SessionSettings) (*domain.Session, error) {
	updates := map[string]any{}
	if settings.Name != nil {
		updates["name"] = *settings.Name
	}
	if settings.GeofenceEnabled != nil {
		updates["geofence_enabled"] = *settings.GeofenceEnabled
	}
	if settings.Latitude != nil {
		updates["latitude"] = *settings.Latitude
	}
	if settings.Longitude != nil {
		updates["longitude"] = *settings.Longitude
	}
	if settings.RadiusMeters != nil {
		updates["radius_meters"] = *settings.RadiusMeters
	}
	if settings.StrictDeviceCheck != nil {
		updates["strict_device_check"] = *settings.StrictDeviceCheck
	}
	if settings.AllowAnonymous != nil {
		updates["allow_anonymous"] = *settings.AllowAnonymous
	}
	if settings.StadiumTheme != nil {
		updates["stadium_theme"] = *settings.StadiumTheme
	}
	if settings.VoterTheme != nil {
		updates["voter_theme"] = *settings.VoterTheme
	}
	if settings.Status != nil {
		updates["status"] = *settings.Status
	}

	var updated domain.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			res := tx.Model(&domain.Session{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
		}
		return notFound(tx.Where("id = ?", id).First(&updated).Error)
	})
	observe(ctx, "session", "update_settings", err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *GormSessionRepository) SetAccessCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"access_code": code, "access_code_expires_at": expiresAt.UTC()})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = domain.ErrNotFound
	}
	observe(ctx, "session", "set_access_code", err)
	return err
}

// Delete removes a session and everything that belongs to it in one
// transaction, children first.
func (r *GormSessionRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s domain.Session
		if err := notFound(tx.Where("id = ?", id).First(&s).Error); err != nil {
			return err
		}
		children := []any{
			&domain.Vote{},
			&domain.Participant{},
			&domain.EntryToken{},
			&domain.Agenda{},
			&domain.AuditEvent{},
		}
		for _, model := range children {
			if err := tx.Where("session_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.Session{}, "id = ?", id).Error
	})
	observe(ctx, "session", "delete", err)
	return err
}
