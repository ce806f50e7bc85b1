package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
)

type EntryTokenRepository interface {
	CreateBatch(ctx context.Context, sessionID string, count int) ([]domain.EntryToken, error)
	FindByID(ctx context.Context, id string) (*domain.EntryToken, error)
	BindFingerprint(ctx context.Context, id, fingerprint string, now time.Time) (*domain.EntryToken, error)
	RevokeBySession(ctx context.Context, sessionID string) (int64, error)
}

type GormEntryTokenRepository struct{ db *gorm.DB }

func NewEntryTokenRepository(db *gorm.DB) EntryTokenRepository {
	return &GormEntryTokenRepository{db: db}
}

func (r *GormEntryTokenRepository) CreateBatch(ctx context.Context, sessionID string, count int) ([]domain.EntryToken, error) {
	tokens := make([]domain.EntryToken, count)
	for i := range tokens {
		tokens[i].SessionID = sessionID
	}
	err := r.db.WithContext(ctx).CreateInBatches(&tokens, 100).Error
	observe(ctx, "entry_token", "create_batch", err)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *GormEntryTokenRepository) FindByID(ctx context.Context, id string) (*domain.EntryToken, error) {
	var t domain.EntryToken
	err := notFound(r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error)
	observe(ctx, "entry_token", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// BindFingerprint binds an unbound, unrevoked token to fingerprint with a
// single conditional update. Rebinding the same fingerprint is a no-op;
// a token already bound elsewhere yields domain.ErrDeviceMismatch.
func (r *GormEntryTokenRepository) BindFingerprint(ctx context.Context, id, fingerprint string, now time.Time) (*domain.EntryToken, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&domain.EntryToken{}).
		Where("id = ? AND revoked = ? AND (device_fingerprint IS NULL OR device_fingerprint = '')", id, false).
		Updates(map[string]any{"device_fingerprint": fingerprint, "bound_at": now.UTC()})
	if res.Error != nil {
		observe(ctx, "entry_token", "bind_fingerprint", res.Error)
		return nil, res.Error
	}

	var t domain.EntryToken
	err := notFound(db.Where("id = ?", id).First(&t).Error)
	if err == nil && res.RowsAffected == 0 {
		switch {
		case t.Revoked:
			err = domain.ErrRevoked
		case t.DeviceFingerprint == nil || *t.DeviceFingerprint != fingerprint:
			err = domain.ErrDeviceMismatch
		}
	}
	observe(ctx, "entry_token", "bind_fingerprint", err)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormEntryTokenRepository) RevokeBySession(ctx context.Context, sessionID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.EntryToken{}).
		Where("session_id = ? AND revoked = ?", sessionID, false).
		Update("revoked", true)
	observe(ctx, "entry_token", "revoke_by_session", res.Error)
	return res.RowsAffected, res.Error
}
