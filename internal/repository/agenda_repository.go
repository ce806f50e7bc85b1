package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
)

// ErrStageConflict is returned when an agenda's stage changed between read
// and conditional write.
var ErrStageConflict = errors.New("agenda stage changed concurrently")

type AgendaRepository interface {
	Create(ctx context.Context, a *domain.Agenda) error
	FindByID(ctx context.Context, id string) (*domain.Agenda, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Agenda, error)
	TransitionStage(ctx context.Context, id string, from, to domain.Stage, now time.Time) (*domain.Agenda, error)
}

type GormAgendaRepository struct{ db *gorm.DB }

func NewAgendaRepository(db *gorm.DB) AgendaRepository { return &GormAgendaRepository{db: db} }

func (r *GormAgendaRepository) Create(ctx context.Context, a *domain.Agenda) error {
	err := r.db.WithContext(ctx).Create(a).Error
	observe(ctx, "agenda", "create", err)
	return err
}

func (r *GormAgendaRepository) FindByID(ctx context.Context, id string) (*domain.Agenda, error) {
	var a domain.Agenda
	err := notFound(r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error)
	observe(ctx, "agenda", "find_by_id", err)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAgendaRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Agenda, error) {
	var agendas []domain.Agenda
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("display_order ASC").
		Order("created_at ASC").
		Find(&agendas).Error
	observe(ctx, "agenda", "list_by_session", err)
	return agendas, err
}

// TransitionStage writes the new stage and its timestamp in a single
// conditional update guarded by the expected current stage.
func (r *GormAgendaRepository) TransitionStage(ctx context.Context, id string, from, to domain.Stage, now time.Time) (*domain.Agenda, error) {
	updates := map[string]any{"stage": to}
	switch to {
	case domain.StageVoting:
		updates["started_at"] = now.UTC()
	case domain.StageEnded:
		updates["ended_at"] = now.UTC()
	}

	var updated domain.Agenda
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Agenda{}).Where("id = ? AND stage = ?", id, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.Agenda{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return ErrStageConflict
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	observe(ctx, "agenda", "transition_stage", err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
