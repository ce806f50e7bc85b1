package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ParticipantRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Participant, error)
	FindByTokenID(ctx context.Context, tokenID string) (*domain.Participant, error)
	FindBySessionAndFingerprint(ctx context.Context, sessionID, fingerprint string) (*domain.Participant, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	CreateWithinQuota(ctx context.Context, p *domain.Participant, limit int) error
	// FindOrCreateByFingerprint returns the session's participant for
	// p.DeviceFingerprint, creating p under the quota when none exists.
	FindOrCreateByFingerprint(ctx context.Context, p *domain.Participant, limit int) (*domain.Participant, bool, error)
	UpdateIdentity(ctx context.Context, id string, fingerprint, displayName *string) error
	Touch(ctx context.Context, id string, lat, lng *float64, now time.Time) error
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

type GormParticipantRepository struct{ db *gorm.DB }

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &GormParticipantRepository{db: db}
}

func (r *GormParticipantRepository) FindByID(ctx context.Context, id string) (*domain.Participant, error) {
	var p domain.Participant
	err := notFound(r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error)
	observe(ctx, "participant", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormParticipantRepository) FindByTokenID(ctx context.Context, tokenID string) (*domain.Participant, error) {
	var p domain.Participant
	err := notFound(r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&p).Error)
	observe(ctx, "participant", "find_by_token_id", err)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormParticipantRepository) FindBySessionAndFingerprint(ctx context.Context, sessionID, fingerprint string) (*domain.Participant, error) {
	var p domain.Participant
	err := notFound(r.db.WithContext(ctx).
		Where("session_id = ? AND device_fingerprint = ?", sessionID, fingerprint).
		Order("created_at ASC").
		First(&p).Error)
	observe(ctx, "participant", "find_by_session_and_fingerprint", err)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormParticipantRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).Where("session_id = ?", sessionID).Count(&count).Error
	observe(ctx, "participant", "count_by_session", err)
	return count, err
}

// CreateWithinQuota inserts p only while the session holds fewer than limit
// participants. A non-positive limit disables the check.
func (r *GormParticipantRepository) CreateWithinQuota(ctx context.Context, p *domain.Participant, limit int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createLocked(tx, p, limit)
	})
	observe(ctx, "participant", "create_within_quota", err)
	return err
}

func (r *GormParticipantRepository) FindOrCreateByFingerprint(ctx context.Context, p *domain.Participant, limit int) (*domain.Participant, bool, error) {
	var found domain.Participant
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSession(tx, p.SessionID); err != nil {
			return err
		}
		err := tx.Where("session_id = ? AND device_fingerprint = ?", p.SessionID, p.DeviceFingerprint).
			Order("created_at ASC").
			First(&found).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := insertWithinQuota(tx, p, limit); err != nil {
			return err
		}
		found = *p
		created = true
		return nil
	})
	observe(ctx, "participant", "find_or_create_by_fingerprint", err)
	if err != nil {
		return nil, false, err
	}
	return &found, created, nil
}

// lockSession loads the session row, locking it on postgres so concurrent
// joins to the same session serialize their quota checks.
func lockSession(tx *gorm.DB, sessionID string) error {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var s domain.Session
	return notFound(q.Select("id").Where("id = ?", sessionID).First(&s).Error)
}

func createLocked(tx *gorm.DB, p *domain.Participant, limit int) error {
	if err := lockSession(tx, p.SessionID); err != nil {
		return err
	}
	return insertWithinQuota(tx, p, limit)
}

func insertWithinQuota(tx *gorm.DB, p *domain.Participant, limit int) error {
	if limit > 0 {
		var count int64
		if err := tx.Model(&domain.Participant{}).Where("session_id = ?", p.SessionID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(limit) {
			return domain.ErrQuotaExceeded
		}
	}
	if err := tx.Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return err
	}
	return nil
}

func (r *GormParticipantRepository) UpdateIdentity(ctx context.Context, id string, fingerprint, displayName *string) error {
	updates := map[string]any{}
	if fingerprint != nil {
		updates["device_fingerprint"] = *fingerprint
	}
	if displayName != nil {
		updates["display_name"] = *displayName
	}
	if len(updates) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).Where("id = ?", id).Updates(updates).Error
	observe(ctx, "participant", "update_identity", err)
	return err
}

func (r *GormParticipantRepository) Touch(ctx context.Context, id string, lat, lng *float64, now time.Time) error {
	updates := map[string]any{"last_active_at": now.UTC()}
	if lat != nil && lng != nil {
		updates["latitude"] = *lat
		updates["longitude"] = *lng
	}
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).Where("id = ?", id).Updates(updates).Error
	observe(ctx, "participant", "touch", err)
	return err
}

// DeleteBySession removes a session's participants and their votes.
func (r *GormParticipantRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&domain.Vote{}).Error; err != nil {
			return err
		}
		res := tx.Where("session_id = ?", sessionID).Delete(&domain.Participant{})
		deleted = res.RowsAffected
		return res.Error
	})
	observe(ctx, "participant", "delete_by_session", err)
	return deleted, err
}
