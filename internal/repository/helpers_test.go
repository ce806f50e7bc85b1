package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
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
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, db *gorm.DB, mutate func(*domain.Session)) *domain.Session {
	t.Helper()
	s := &domain.Session{Name: "general assembly", EntryMode: domain.EntryModeUniqueToken}
	if mutate != nil {
		mutate(s)
	}
	if err := NewSessionRepository(db).Create(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func seedAgenda(t *testing.T, db *gorm.DB, sessionID string, stage domain.Stage) *domain.Agenda {
	t.Helper()
	a := &domain.Agenda{SessionID: sessionID, Title: "budget", Type: domain.AgendaTypeBinary, Stage: stage}
	if err := NewAgendaRepository(db).Create(context.Background(), a); err != nil {
		t.Fatalf("create agenda: %v", err)
	}
	return a
}

func seedParticipant(t *testing.T, db *gorm.DB, sessionID, fingerprint string) *domain.Participant {
	t.Helper()
	p := &domain.Participant{SessionID: sessionID, DeviceFingerprint: fingerprint}
	if err := NewParticipantRepository(db).CreateWithinQuota(context.Background(), p, 0); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	return p
}
