package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestVoteRepositoryRejectsSecondVote(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	a := seedAgenda(t, db, s.ID, domain.StageVoting)
	p := seedParticipant(t, db, s.ID, strings.Repeat("v", 25))
	repo := NewVoteRepository(db)

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, &domain.Vote{SessionID: s.ID, ParticipantID: p.ID, AgendaID: a.ID, Choice: domain.ChoiceApprove})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrUniqueViolation):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 || dup.Load() != 99 {
		t.Fatalf("expected exactly one stored vote, ok=%d dup=%d", ok.Load(), dup.Load())
	}

	v, err := repo.FindByParticipantAndAgenda(ctx, p.ID, a.ID)
	if err != nil || v.Choice != domain.ChoiceApprove {
		t.Fatalf("find vote: %+v err=%v", v, err)
	}
}

func TestVoteRepositoryCountByChoice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	a := seedAgenda(t, db, s.ID, domain.StageVoting)
	repo := NewVoteRepository(db)

	choices := []string{domain.ChoiceApprove, domain.ChoiceApprove, domain.ChoiceReject, domain.ChoiceAbstain}
	for i, c := range choices {
		p := seedParticipant(t, db, s.ID, strings.Repeat(string(rune('a'+i)), 25))
		if err := repo.Create(ctx, &domain.Vote{SessionID: s.ID, ParticipantID: p.ID, AgendaID: a.ID, Choice: c}); err != nil {
			t.Fatalf("create vote: %v", err)
		}
	}
	rows, err := repo.CountByChoice(ctx, a.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	got := map[string]int64{}
	for _, r := range rows {
		got[r.Choice] = r.Count
	}
	if got[domain.ChoiceApprove] != 2 || got[domain.ChoiceReject] != 1 || got[domain.ChoiceAbstain] != 1 {
		t.Fatalf("unexpected counts: %v", got)
	}
}
