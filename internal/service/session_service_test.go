package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestRotateAccessCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, func(s *domain.Session) { s.EntryMode = domain.EntryModeSharedLink })
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.sessionSvc.now = func() time.Time { return fixed }

	view, err := f.sessionSvc.RotateAccessCode(ctx, f.superAdmin, s.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if len(view.Code) != 4 || !view.ExpiresAt.Equal(fixed.Add(10*time.Minute)) {
		t.Fatalf("unexpected access code view: %+v", view)
	}

	stored, err := f.sessions.FindByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.AccessCode == nil || *stored.AccessCode != view.Code {
		t.Fatalf("access code not stored: %v", stored.AccessCode)
	}
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, nil)

	if _, err := f.sessionSvc.UpdateSettings(ctx, f.superAdmin, s.ID, SettingsUpdate{RadiusMeters: ptr(-1.0)}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	updated, err := f.sessionSvc.UpdateSettings(ctx, f.superAdmin, s.ID, SettingsUpdate{
		GeofenceEnabled: ptr(true),
		Latitude:        ptr(37.5),
		Longitude:       ptr(127.0),
		RadiusMeters:    ptr(250.0),
		VoterTheme:      ptr("dark"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.HasGeofence() || updated.VoterTheme != "dark" || updated.Name != s.Name {
		t.Fatalf("unexpected session after update: %+v", updated)
	}
}

func TestResetParticipantsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, nil)
	a := f.agenda(t, s.ID, domain.AgendaTypeBinary, domain.StageVoting)
	p := f.participant(t, s.ID, testFingerprintA)
	if _, err := f.voteSvc.Cast(ctx, p.ID, a.ID, domain.ChoiceApprove, "test"); err != nil {
		t.Fatalf("cast: %v", err)
	}

	n, err := f.sessionSvc.ResetParticipants(ctx, f.superAdmin, s.ID)
	if err != nil || n != 1 {
		t.Fatalf("reset: n=%d err=%v", n, err)
	}
	var votes int64
	f.db.Model(&domain.Vote{}).Where("session_id = ?", s.ID).Count(&votes)
	if votes != 0 {
		t.Fatalf("expected votes removed with participants, got %d", votes)
	}

	if err := f.sessionSvc.Delete(ctx, f.superAdmin, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.sessionSvc.Public(ctx, s.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := f.agendas.FindByID(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected agenda removed, got %v", err)
	}
}

func TestSessionLookupsIgnoreIDCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.session(t, nil)
	mixed := "  " + strings.ToUpper(s.ID) + " "

	public, err := f.sessionSvc.Public(ctx, mixed)
	if err != nil {
		t.Fatalf("public: %v", err)
	}
	if public.ID != s.ID {
		t.Fatalf("public id = %q, want %q", public.ID, s.ID)
	}
	if err := f.sessionSvc.Authorize(ctx, f.superAdmin, mixed); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	issued, err := f.entryTokens.Issue(ctx, f.superAdmin, mixed, 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, tok := range issued {
		if tok.SessionID != s.ID {
			t.Fatalf("token stored under %q, want %q", tok.SessionID, s.ID)
		}
	}
}
