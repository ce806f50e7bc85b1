package repository

import (
	"context"
	"testing"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
)

func TestSettingRepositoryUpsertAndDefault(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSettingRepository(db)

	if err := repo.EnsureDefault(ctx, &domain.SystemSetting{Key: domain.SettingRateLimit, Value: "10000", Type: domain.SettingTypeNumber}); err != nil {
		t.Fatalf("ensure default: %v", err)
	}
	if err := repo.Upsert(ctx, &domain.SystemSetting{Key: domain.SettingRateLimit, Value: "50", Type: domain.SettingTypeNumber}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.EnsureDefault(ctx, &domain.SystemSetting{Key: domain.SettingRateLimit, Value: "10000", Type: domain.SettingTypeNumber}); err != nil {
		t.Fatalf("ensure default again: %v", err)
	}

	settings, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(settings) != 1 || settings[0].Value != "50" {
		t.Fatalf("expected upserted value to survive default seeding, got %+v", settings)
	}
}

func TestAuditRepositoryListBySessionPaged(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAuditRepository(db)
	sid := "session-1"
	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &domain.AuditEvent{EventType: domain.AuditVoteCast, SessionID: &sid}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	page, err := repo.ListBySession(ctx, sid, PageRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
}
