package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/security"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testFingerprintA = "fp-device-aaaaaaaaaaaaaaaa"
	testFingerprintB = "fp-device-bbbbbbbbbbbbbbbb"
	testAccessCode   = "4821"
)

type fixture struct {
	db           *gorm.DB
	sessions     repository.SessionRepository
	agendas      repository.AgendaRepository
	tokens       repository.EntryTokenRepository
	participants repository.ParticipantRepository
	votes        repository.VoteRepository
	users        repository.UserRepository
	settings     repository.SettingRepository
	jwt          *security.JWTManager

	identity    *IdentityService
	entryTokens *EntryTokenService
	agendaSvc   *AgendaService
	voteSvc     *VoteService
	sessionSvc  *SessionService
	adminAuth   *AdminAuthService
	settingsSvc *SettingsService
	superAdmin  Actor
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{
		db:           db,
		sessions:     repository.NewSessionRepository(db),
		agendas:      repository.NewAgendaRepository(db),
		tokens:       repository.NewEntryTokenRepository(db),
		participants: repository.NewParticipantRepository(db),
		votes:        repository.NewVoteRepository(db),
		users:        repository.NewUserRepository(db),
		settings:     repository.NewSettingRepository(db),
		jwt:          security.NewJWTManager("live-voting", "voters", "participant-secret-0123456789abcdef", "admin-secret-0123456789abcdef"),
		superAdmin:   Actor{UserID: "root", Username: "root", Role: domain.RoleSuperAdmin},
		now:          time.Now(),
	}
	authorizer := NewSessionAuthorizer(f.sessions)
	f.identity = NewIdentityService(f.sessions, f.tokens, f.participants, f.users, f.jwt, time.Hour, NewInMemoryLookupMissCache(), nil, nil)
	f.entryTokens = NewEntryTokenService(f.tokens, f.sessions, authorizer, nil)
	f.voteSvc = NewVoteService(f.agendas, f.votes, f.participants, nil)
	f.agendaSvc = NewAgendaService(f.agendas, f.voteSvc, authorizer, nil)
	f.sessionSvc = NewSessionService(f.sessions, f.participants, authorizer, nil, 10*time.Minute)
	f.adminAuth = NewAdminAuthService(f.users, f.jwt, time.Hour, nil, nil)
	f.settingsSvc = NewSettingsService(f.settings, 10000, nil)
	return f
}

func (f *fixture) session(t *testing.T, mutate func(*domain.Session)) *domain.Session {
	t.Helper()
	expires := time.Now().Add(time.Hour)
	s := &domain.Session{
		Name:                "annual meeting",
		EntryMode:           domain.EntryModeUniqueToken,
		Status:              domain.SessionStatusActive,
		AccessCode:          ptr(testAccessCode),
		AccessCodeExpiresAt: &expires,
	}
	if mutate != nil {
		mutate(s)
	}
	if err := f.sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func (f *fixture) agenda(t *testing.T, sessionID string, typ domain.AgendaType, stage domain.Stage, options ...string) *domain.Agenda {
	t.Helper()
	a := &domain.Agenda{SessionID: sessionID, Title: "motion", Type: typ, Stage: stage, Options: options}
	if err := f.agendas.Create(context.Background(), a); err != nil {
		t.Fatalf("create agenda: %v", err)
	}
	return a
}

func (f *fixture) owner(t *testing.T, username string, maxParticipants int) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:                  username,
		PasswordHash:              "x",
		Role:                      domain.RoleVoteManager,
		Active:                    true,
		MaxParticipantsPerSession: maxParticipants,
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) participant(t *testing.T, sessionID, fingerprint string) *domain.Participant {
	t.Helper()
	p := &domain.Participant{SessionID: sessionID, DeviceFingerprint: fingerprint}
	if err := f.participants.CreateWithinQuota(context.Background(), p, 0); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }
