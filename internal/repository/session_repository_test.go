package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestSessionRepositoryUpdateSettings(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	s := seedSession(t, db, nil)

	enabled := true
	lat, lng, radius := 37.5, 127.0, 150.0
	theme := "dark"
	updated, err := repo.UpdateSettings(context.Background(), s.ID, SessionSettings{
		GeofenceEnabled: &enabled,
		Latitude:        &lat,
		Longitude:       &lng,
		RadiusMeters:    &radius,
		VoterTheme:      &theme,
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if !updated.HasGeofence() || *updated.RadiusMeters != radius || updated.VoterTheme != "dark" {
		t.Fatalf("unexpected session after update: %+v", updated)
	}
	if updated.Name != s.Name {
		t.Fatalf("expected untouched fields to survive, got name %q", updated.Name)
	}

	if _, err := repo.UpdateSettings(context.Background(), "missing", SessionSettings{VoterTheme: &theme}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionRepositorySetAccessCode(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	s := seedSession(t, db, nil)

	expires := time.Now().Add(time.Hour)
	if err := repo.SetAccessCode(context.Background(), s.ID, "4821", expires); err != nil {
		t.Fatalf("set access code: %v", err)
	}
	got, err := repo.FindByID(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.AccessCode == nil || *got.AccessCode != "4821" || got.AccessCodeExpiresAt == nil {
		t.Fatalf("unexpected access code state: %+v", got)
	}
	if err := repo.SetAccessCode(context.Background(), "missing", "1111", expires); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionRepositoryDeleteRemovesChildren(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := seedSession(t, db, nil)
	other := seedSession(t, db, nil)

	a := seedAgenda(t, db, s.ID, domain.StageVoting)
	p := seedParticipant(t, db, s.ID, "fingerprint-aaaaaaaaaaaaaaaa")
	if _, err := NewEntryTokenRepository(db).CreateBatch(ctx, s.ID, 3); err != nil {
		t.Fatalf("create tokens: %v", err)
	}
	if err := NewVoteRepository(db).Create(ctx, &domain.Vote{SessionID: s.ID, ParticipantID: p.ID, AgendaID: a.ID, Choice: domain.ChoiceApprove}); err != nil {
		t.Fatalf("create vote: %v", err)
	}
	sid := s.ID
	if err := NewAuditRepository(db).Create(ctx, &domain.AuditEvent{EventType: domain.AuditVoteCast, SessionID: &sid}); err != nil {
		t.Fatalf("create audit: %v", err)
	}
	seedAgenda(t, db, other.ID, domain.StagePending)

	if err := NewSessionRepository(db).Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, model := range []any{&domain.Vote{}, &domain.Participant{}, &domain.EntryToken{}, &domain.Agenda{}, &domain.AuditEvent{}} {
		var count int64
		if err := db.Model(model).Where("session_id = ?", s.ID).Count(&count).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if count != 0 {
			t.Fatalf("expected no orphaned %T rows, got %d", model, count)
		}
	}
	if _, err := NewSessionRepository(db).FindByID(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted session to be gone, got %v", err)
	}
	agendas, err := NewAgendaRepository(db).ListBySession(ctx, other.ID)
	if err != nil || len(agendas) != 1 {
		t.Fatalf("expected other session untouched, got %d agendas err=%v", len(agendas), err)
	}
	if err := NewSessionRepository(db).Delete(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
}
