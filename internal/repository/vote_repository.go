package repository

import (
	"context"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
)

type ChoiceCount struct {
	Choice string
	Count  int64
}

type VoteRepository interface {
	// Create inserts v. A second vote for the same participant and agenda
	// returns ErrUniqueViolation.
	Create(ctx context.Context, v *domain.Vote) error
	FindByParticipantAndAgenda(ctx context.Context, participantID, agendaID string) (*domain.Vote, error)
	CountByChoice(ctx context.Context, agendaID string) ([]ChoiceCount, error)
}

type GormVoteRepository struct{ db *gorm.DB }

func NewVoteRepository(db *gorm.DB) VoteRepository { return &GormVoteRepository{db: db} }

func (r *GormVoteRepository) Create(ctx context.Context, v *domain.Vote) error {
	err := r.db.WithContext(ctx).Create(v).Error
	if isUniqueViolation(err) {
		err = ErrUniqueViolation
	}
	observe(ctx, "vote", "create", err)
	return err
}

func (r *GormVoteRepository) FindByParticipantAndAgenda(ctx context.Context, participantID, agendaID string) (*domain.Vote, error) {
	var v domain.Vote
	err := notFound(r.db.WithContext(ctx).
		Where("participant_id = ? AND agenda_id = ?", participantID, agendaID).
		First(&v).Error)
	observe(ctx, "vote", "find_by_participant_and_agenda", err)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *GormVoteRepository) CountByChoice(ctx context.Context, agendaID string) ([]ChoiceCount, error) {
	var rows []ChoiceCount
	err := r.db.WithContext(ctx).Model(&domain.Vote{}).
		Select("choice, COUNT(*) AS count").
		Where("agenda_id = ?", agendaID).
		Group("choice").
		Scan(&rows).Error
	observe(ctx, "vote", "count_by_choice", err)
	return rows, err
}
