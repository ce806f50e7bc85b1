package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestCastValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, nil)
	other := f.session(t, nil)
	p := f.participant(t, s.ID, testFingerprintA)

	binary := f.agenda(t, s.ID, domain.AgendaTypeBinary, domain.StageVoting)
	multi := f.agenda(t, s.ID, domain.AgendaTypeMultipleChoice, domain.StageVoting, "red", "blue")
	text := f.agenda(t, s.ID, domain.AgendaTypeFreeText, domain.StageVoting)
	pending := f.agenda(t, s.ID, domain.AgendaTypeBinary, domain.StagePending)
	foreign := f.agenda(t, other.ID, domain.AgendaTypeBinary, domain.StageVoting)

	tests := []struct {
		name    string
		agenda  string
		choice  string
		wantErr error
	}{
		{name: "not voting", agenda: pending.ID, choice: domain.ChoiceApprove, wantErr: domain.ErrNotVotingNow},
		{name: "foreign agenda", agenda: foreign.ID, choice: domain.ChoiceApprove, wantErr: domain.ErrForbidden},
		{name: "unknown agenda", agenda: "missing", choice: domain.ChoiceApprove, wantErr: domain.ErrNotFound},
		{name: "binary illegal", agenda: binary.ID, choice: "maybe", wantErr: domain.ErrInvalidChoice},
		{name: "multi illegal", agenda: multi.ID, choice: "green", wantErr: domain.ErrInvalidChoice},
		{name: "free text blank", agenda: text.ID, choice: "   ", wantErr: domain.ErrInvalidChoice},
		{name: "free text too long", agenda: text.ID, choice: strings.Repeat("x", domain.MaxFreeTextChoiceLength+1), wantErr: domain.ErrInvalidChoice},
		{name: "multi legal", agenda: multi.ID, choice: "blue"},
		{name: "free text legal", agenda: text.ID, choice: "  more parking  "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.voteSvc.Cast(ctx, p.ID, tc.agenda, tc.choice, "test")
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	v, err := f.voteSvc.MyVote(ctx, p.ID, text.ID)
	if err != nil {
		t.Fatalf("my vote: %v", err)
	}
	if v.Choice != "more parking" {
		t.Fatalf("expected trimmed answer, got %q", v.Choice)
	}
}

func TestCastByUnknownParticipant(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, nil)
	a := f.agenda(t, s.ID, domain.AgendaTypeBinary, domain.StageVoting)
	_, err := f.voteSvc.Cast(context.Background(), "ghost", a.ID, domain.ChoiceApprove, "test")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("unknown participant reported as unauthorized: %v", err)
	}
}

func TestConcurrentCastSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, nil)
	p := f.participant(t, s.ID, testFingerprintA)
	a := f.agenda(t, s.ID, domain.AgendaTypeBinary, domain.StageVoting)

	var ok, dup atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.voteSvc.Cast(ctx, p.ID, a.ID, domain.ChoiceReject, "test")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrDuplicateVote):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 || dup.Load() != 49 {
		t.Fatalf("expected 1 accepted and 49 duplicates, got %d and %d", ok.Load(), dup.Load())
	}
	voted, err := f.voteSvc.HasVoted(ctx, p.ID, a.ID)
	if err != nil || !voted {
		t.Fatalf("expected has voted, got %v %v", voted, err)
	}
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, nil)
	a := f.agenda(t, s.ID, domain.AgendaTypeBinary, domain.StageVoting)
	choices := []string{domain.ChoiceApprove, domain.ChoiceApprove, domain.ChoiceReject}
	for i, choice := range choices {
		p := f.participant(t, s.ID, fmt.Sprintf("fp-device-%020d", i))
		if _, err := f.voteSvc.Cast(ctx, p.ID, a.ID, choice, "test"); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		f.participant(t, s.ID, fmt.Sprintf("fp-idle-%020d", i))
	}

	stats, err := f.voteSvc.Statistics(ctx, a.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalVotes != 3 || stats.ApproveCount != 2 || stats.RejectCount != 1 || stats.AbstainCount != 0 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TotalParticipants != 7 {
		t.Fatalf("expected 7 participants, got %d", stats.TotalParticipants)
	}
	if stats.TurnoutPercentage != 42.86 {
		t.Fatalf("expected turnout 42.86, got %v", stats.TurnoutPercentage)
	}
	if stats.VoteCounts[domain.ChoiceAbstain] != 0 || stats.VoteCounts[domain.ChoiceApprove] != 2 {
		t.Fatalf("unexpected vote counts: %v", stats.VoteCounts)
	}
}

func TestTurnoutWithoutParticipants(t *testing.T) {
	if got := turnout(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := turnout(1, 3); got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
}
