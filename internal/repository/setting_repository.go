package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository interface {
	List(ctx context.Context) ([]domain.SystemSetting, error)
	Upsert(ctx context.Context, setting *domain.SystemSetting) error
	// EnsureDefault inserts setting only when its key does not exist yet.
	EnsureDefault(ctx context.Context, setting *domain.SystemSetting) error
}

type GormSettingRepository struct{ db *gorm.DB }

func NewSettingRepository(db *gorm.DB) SettingRepository { return &GormSettingRepository{db: db} }

func (r *GormSettingRepository) List(ctx context.Context) ([]domain.SystemSetting, error) {
	var settings []domain.SystemSetting
	err := r.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&settings).Error
	observe(ctx, "system_setting", "list", err)
	return settings, err
}

func (r *GormSettingRepository) Upsert(ctx context.Context, setting *domain.SystemSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(setting).Error
	observe(ctx, "system_setting", "upsert", err)
	return err
}

func (r *GormSettingRepository) EnsureDefault(ctx context.Context, setting *domain.SystemSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(setting).Error
	observe(ctx, "system_setting", "ensure_default", err)
	return err
}
