package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestAgendaTransitionStage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	a := seedAgenda(t, db, s.ID, domain.StageSubmitted)
	repo := NewAgendaRepository(db)

	voting, err := repo.TransitionStage(ctx, a.ID, domain.StageSubmitted, domain.StageVoting, time.Now())
	if err != nil {
		t.Fatalf("to voting: %v", err)
	}
	if voting.Stage != domain.StageVoting || voting.StartedAt == nil || voting.EndedAt != nil {
		t.Fatalf("unexpected agenda after voting transition: %+v", voting)
	}
	ended, err := repo.TransitionStage(ctx, a.ID, domain.StageVoting, domain.StageEnded, time.Now())
	if err != nil {
		t.Fatalf("to ended: %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatal("expected ended_at to be recorded with the stage")
	}

	if _, err := repo.TransitionStage(ctx, a.ID, domain.StageVoting, domain.StageEnded, time.Now()); !errors.Is(err, ErrStageConflict) {
		t.Fatalf("expected stale transition to conflict, got %v", err)
	}
	if _, err := repo.TransitionStage(ctx, "missing", domain.StageVoting, domain.StageEnded, time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	reopenAt := ended.EndedAt.Add(time.Hour)
	reopened, err := repo.TransitionStage(ctx, a.ID, domain.StageEnded, domain.StageVoting, reopenAt)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.EndedAt == nil || !reopened.EndedAt.Equal(*ended.EndedAt) {
		t.Fatalf("reopen must keep the previous ended_at %v, got %v", ended.EndedAt, reopened.EndedAt)
	}
	if reopened.StartedAt == nil || !reopened.StartedAt.Equal(reopenAt.UTC()) {
		t.Fatalf("reopen must restart started_at at %v, got %v", reopenAt, reopened.StartedAt)
	}
}
