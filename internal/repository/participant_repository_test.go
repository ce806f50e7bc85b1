package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestParticipantCreateWithinQuota(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	repo := NewParticipantRepository(db)

	var created, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &domain.Participant{SessionID: s.ID, DeviceFingerprint: fmt.Sprintf("fp-%02d-%s", i, strings.Repeat("z", 20))}
			err := repo.CreateWithinQuota(ctx, p, 3)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, domain.ErrQuotaExceeded):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	count, err := repo.CountBySession(ctx, s.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 || created.Load() != 3 || rejected.Load() != 7 {
		t.Fatalf("expected quota of 3 to hold, count=%d created=%d rejected=%d", count, created.Load(), rejected.Load())
	}
}

func TestParticipantUniqueTokenAndLookups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	repo := NewParticipantRepository(db)
	tokenID := "token-1"
	fp := strings.Repeat("f", 30)

	first := &domain.Participant{SessionID: s.ID, TokenID: &tokenID, DeviceFingerprint: fp}
	if err := repo.CreateWithinQuota(ctx, first, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.Participant{SessionID: s.ID, TokenID: &tokenID, DeviceFingerprint: fp}
	if err := repo.CreateWithinQuota(ctx, dup, 0); !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("expected unique violation for second participant on token, got %v", err)
	}

	got, err := repo.FindByTokenID(ctx, tokenID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("find by token: %+v err=%v", got, err)
	}
	got, err = repo.FindBySessionAndFingerprint(ctx, s.ID, fp)
	if err != nil || got.ID != first.ID {
		t.Fatalf("find by fingerprint: %+v err=%v", got, err)
	}
	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.CreateWithinQuota(ctx, &domain.Participant{SessionID: "missing", DeviceFingerprint: fp}, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing session to be not found, got %v", err)
	}

	lat, lng := 37.1, 127.1
	if err := repo.Touch(ctx, first.ID, &lat, &lng, time.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = repo.FindByID(ctx, first.ID)
	if got.LastActiveAt == nil || got.Latitude == nil || *got.Latitude != lat {
		t.Fatalf("expected touch to record activity and location, got %+v", got)
	}
}

func TestParticipantDeleteBySessionRemovesVotes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	a := seedAgenda(t, db, s.ID, domain.StageVoting)
	p := seedParticipant(t, db, s.ID, strings.Repeat("q", 25))
	if err := NewVoteRepository(db).Create(ctx, &domain.Vote{SessionID: s.ID, ParticipantID: p.ID, AgendaID: a.ID, Choice: domain.ChoiceReject}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	n, err := NewParticipantRepository(db).DeleteBySession(ctx, s.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected one participant deleted, got %d err=%v", n, err)
	}
	counts, err := NewVoteRepository(db).CountByChoice(ctx, a.ID)
	if err != nil || len(counts) != 0 {
		t.Fatalf("expected votes removed with participants, got %v err=%v", counts, err)
	}
}

func TestParticipantFindOrCreateByFingerprintIsSingleton(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	repo := NewParticipantRepository(db)
	fp := strings.Repeat("s", 40)

	var createdCount atomic.Int32
	ids := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, created, err := repo.FindOrCreateByFingerprint(ctx, &domain.Participant{SessionID: s.ID, DeviceFingerprint: fp}, 10)
			if err != nil {
				t.Errorf("find or create: %v", err)
				return
			}
			if created {
				createdCount.Add(1)
			}
			ids <- p.ID
		}()
	}
	wg.Wait()
	close(ids)

	first := ""
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("expected one participant per fingerprint, saw %s and %s", first, id)
		}
	}
	if createdCount.Load() != 1 {
		t.Fatalf("expected exactly one creation, got %d", createdCount.Load())
	}

	name := "Kim"
	if err := repo.UpdateIdentity(ctx, first, nil, &name); err != nil {
		t.Fatalf("update identity: %v", err)
	}
	got, _ := repo.FindByID(ctx, first)
	if got.DisplayName == nil || *got.DisplayName != "Kim" {
		t.Fatalf("expected display name update, got %+v", got)
	}
}
