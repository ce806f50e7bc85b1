package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
)

type CastResult struct {
	Vote      *domain.Vote
	SessionID string
}

type VoteService struct {
	agendas      repository.AgendaRepository
	votes        repository.VoteRepository
	participants repository.ParticipantRepository
	audit        AuditRecorder
}

func NewVoteService(
	agendas repository.AgendaRepository,
	votes repository.VoteRepository,
	participants repository.ParticipantRepository,
	audit AuditRecorder,
) *VoteService {
	if audit == nil {
		audit = NoopAuditRecorder{}
	}
	return &VoteService{agendas: agendas, votes: votes, participants: participants, audit: audit}
}

// Cast records a participant's single vote on an agenda. The unique index on
// (participant, agenda) decides races; the loser gets ErrDuplicateVote.
func (s *VoteService) Cast(ctx context.Context, participantID, agendaID, choice, transport string) (result *CastResult, err error) {
	ctx, span := observability.StartSpan(ctx, "vote.cast")
	defer func() {
		observability.EndSpan(span, err)
		observability.RecordVoteCast(ctx, transport, castOutcome(err))
	}()

	participant, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: participant no longer exists", domain.ErrNotFound)
		}
		return nil, err
	}
	agenda, err := s.agendas.FindByID(ctx, agendaID)
	if err != nil {
		return nil, err
	}
	if agenda.SessionID != participant.SessionID {
		return nil, fmt.Errorf("%w: agenda belongs to another session", domain.ErrForbidden)
	}
	if !agenda.Stage.AcceptsVotes() {
		return nil, domain.ErrNotVotingNow
	}
	normalized, err := normalizeChoice(agenda, choice)
	if err != nil {
		return nil, err
	}

	vote := &domain.Vote{
		SessionID:     agenda.SessionID,
		ParticipantID: participant.ID,
		AgendaID:      agenda.ID,
		Choice:        normalized,
	}
	if err := s.votes.Create(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, domain.ErrDuplicateVote
		}
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Type:          domain.AuditVoteCast,
		SessionID:     agenda.SessionID,
		ParticipantID: participant.ID,
		Data:          map[string]any{"agenda_id": agenda.ID},
	})
	return &CastResult{Vote: vote, SessionID: agenda.SessionID}, nil
}

// MyVote returns the participant's recorded choice or ErrNotFound.
func (s *VoteService) MyVote(ctx context.Context, participantID, agendaID string) (*domain.Vote, error) {
	return s.votes.FindByParticipantAndAgenda(ctx, participantID, agendaID)
}

func (s *VoteService) HasVoted(ctx context.Context, participantID, agendaID string) (bool, error) {
	_, err := s.votes.FindByParticipantAndAgenda(ctx, participantID, agendaID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Statistics aggregates the agenda's ledger. Turnout is measured against every
// participant registered in the session and rounded to two decimals.
func (s *VoteService) Statistics(ctx context.Context, agendaID string) (*domain.Statistics, error) {
	agenda, err := s.agendas.FindByID(ctx, agendaID)
	if err != nil {
		return nil, err
	}
	counts, err := s.votes.CountByChoice(ctx, agendaID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants.CountBySession(ctx, agenda.SessionID)
	if err != nil {
		return nil, err
	}

	stats := &domain.Statistics{
		AgendaID:          agenda.ID,
		Title:             agenda.Title,
		Type:              agenda.Type,
		Options:           agenda.ChoiceOptions(),
		VoteCounts:        make(map[string]int64, len(counts)),
		TotalParticipants: participants,
	}
	for _, option := range stats.Options {
		stats.VoteCounts[option] = 0
	}
	for _, c := range counts {
		stats.VoteCounts[c.Choice] = c.Count
		stats.TotalVotes += c.Count
		switch c.Choice {
		case domain.ChoiceApprove:
			stats.ApproveCount = c.Count
		case domain.ChoiceReject:
			stats.RejectCount = c.Count
		case domain.ChoiceAbstain:
			stats.AbstainCount = c.Count
		}
	}
	stats.TurnoutPercentage = turnout(stats.TotalVotes, participants)
	return stats, nil
}

func turnout(votes, participants int64) float64 {
	if participants <= 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(participants)*100*100) / 100
}

func normalizeChoice(agenda *domain.Agenda, choice string) (string, error) {
	switch agenda.Type {
	case domain.AgendaTypeFreeText:
		text := strings.TrimSpace(choice)
		if text == "" {
			return "", fmt.Errorf("%w: answer is empty", domain.ErrInvalidChoice)
		}
		if utf8.RuneCountInString(text) > domain.MaxFreeTextChoiceLength {
			return "", fmt.Errorf("%w: answer exceeds %d characters", domain.ErrInvalidChoice, domain.MaxFreeTextChoiceLength)
		}
		return text, nil
	default:
		if !slices.Contains(agenda.ChoiceOptions(), choice) {
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidChoice, choice)
		}
		return choice, nil
	}
}

func castOutcome(err error) string {
	if err == nil {
		return "accepted"
	}
	return strings.ToLower(domain.Code(err))
}
