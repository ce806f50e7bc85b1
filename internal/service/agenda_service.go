package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"golang.org/x/sync/errgroup"
)

type StageChange struct {
	Agenda *domain.Agenda
	From   domain.Stage
	// Changed is false when the request was an idempotent re-publish.
	Changed bool
	At      time.Time
	// Stats is the final tally, set only by Publish.
	Stats *domain.Statistics
}

type StatisticsReader interface {
	Statistics(ctx context.Context, agendaID string) (*domain.Statistics, error)
}

type AgendaService struct {
	agendas    repository.AgendaRepository
	stats      StatisticsReader
	authorizer *SessionAuthorizer
	audit      AuditRecorder
	now        func() time.Time
}

func NewAgendaService(agendas repository.AgendaRepository, stats StatisticsReader, authorizer *SessionAuthorizer, audit AuditRecorder) *AgendaService {
	if audit == nil {
		audit = NoopAuditRecorder{}
	}
	return &AgendaService{agendas: agendas, stats: stats, authorizer: authorizer, audit: audit, now: time.Now}
}

func (s *AgendaService) Get(ctx context.Context, agendaID string) (*domain.Agenda, error) {
	return s.agendas.FindByID(ctx, agendaID)
}

// Transition moves an agenda to target after checking the caller's control
// rights and the transition table.
func (s *AgendaService) Transition(ctx context.Context, actor Actor, agendaID string, target domain.Stage) (*StageChange, error) {
	agenda, err := s.agendas.FindByID(ctx, agendaID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, actor, agenda.SessionID); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, agenda, target)
}

// End closes voting on an agenda.
func (s *AgendaService) End(ctx context.Context, actor Actor, agendaID string) (*StageChange, error) {
	return s.Transition(ctx, actor, agendaID, domain.StageEnded)
}

// Publish announces an ended agenda. Publishing an already announced agenda
// succeeds without another stage write so results can be re-broadcast.
func (s *AgendaService) Publish(ctx context.Context, actor Actor, agendaID string) (*StageChange, error) {
	agenda, err := s.agendas.FindByID(ctx, agendaID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, actor, agenda.SessionID); err != nil {
		return nil, err
	}
	if agenda.Stage == domain.StageAnnounced {
		stats, err := s.stats.Statistics(ctx, agenda.ID)
		if err != nil {
			return nil, err
		}
		return &StageChange{Agenda: agenda, From: agenda.Stage, At: s.now().UTC(), Stats: stats}, nil
	}
	if !domain.CanTransition(agenda.Stage, domain.StageAnnounced) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStage, agenda.Stage, domain.StageAnnounced)
	}

	// The ledger is closed once voting has ended, so the tally can be read
	// alongside the stage write.
	var (
		change *StageChange
		stats  *domain.Statistics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		change, err = s.apply(gctx, actor, agenda, domain.StageAnnounced)
		return err
	})
	g.Go(func() error {
		var err error
		if stats, err = s.stats.Statistics(gctx, agenda.ID); err != nil {
			return fmt.Errorf("tally published result: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	change.Stats = stats
	return change, nil
}

func (s *AgendaService) apply(ctx context.Context, actor Actor, agenda *domain.Agenda, target domain.Stage) (*StageChange, error) {
	from := agenda.Stage
	if !domain.CanTransition(from, target) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStage, from, target)
	}
	now := s.now()
	updated, err := s.agendas.TransitionStage(ctx, agenda.ID, from, target, now)
	if errors.Is(err, repository.ErrStageConflict) {
		return nil, fmt.Errorf("%w: stage changed concurrently", domain.ErrInvalidStage)
	}
	if err != nil {
		return nil, err
	}
	observability.RecordStageTransition(ctx, string(from), string(target))
	s.audit.Record(ctx, AuditEntry{
		Type:      domain.AuditStageChanged,
		SessionID: agenda.SessionID,
		Data:      map[string]any{"agenda_id": agenda.ID, "from": from, "to": target, "actor": actor.UserID},
	})
	return &StageChange{Agenda: updated, From: from, Changed: true, At: now.UTC()}, nil
}
