package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
)

// SettingsSnapshot is an immutable view of the system settings table.
type SettingsSnapshot struct {
	values   map[string]domain.SystemSetting
	loadedAt time.Time
}

func (s *SettingsSnapshot) Get(key string) (domain.SystemSetting, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *SettingsSnapshot) Int(key string, fallback int) int {
	v, ok := s.values[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *SettingsSnapshot) All() []domain.SystemSetting {
	out := make([]domain.SystemSetting, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v)
	}
	return out
}

func (s *SettingsSnapshot) LoadedAt() time.Time { return s.loadedAt }

// SettingsService keeps the settings table in memory. Readers get the last
// loaded snapshot without touching storage; writers reload immediately.
type SettingsService struct {
	repo             repository.SettingRepository
	logger           *slog.Logger
	defaultRateLimit int
	current          atomic.Pointer[SettingsSnapshot]
}

func NewSettingsService(repo repository.SettingRepository, defaultRateLimit int, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SettingsService{repo: repo, logger: logger, defaultRateLimit: defaultRateLimit}
	s.current.Store(&SettingsSnapshot{values: map[string]domain.SystemSetting{}})
	return s
}

// EnsureDefaults seeds missing settings and loads the first snapshot.
func (s *SettingsService) EnsureDefaults(ctx context.Context) error {
	err := s.repo.EnsureDefault(ctx, &domain.SystemSetting{
		Key:   domain.SettingRateLimit,
		Value: strconv.Itoa(s.defaultRateLimit),
		Type:  domain.SettingTypeNumber,
	})
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return s.Reload(ctx, "startup")
}

func (s *SettingsService) Reload(ctx context.Context, trigger string) error {
	rows, err := s.repo.List(ctx)
	if err != nil {
		observability.RecordSettingsReload(ctx, trigger, "error")
		return fmt.Errorf("load settings: %w", err)
	}
	values := make(map[string]domain.SystemSetting, len(rows))
	for _, row := range rows {
		values[row.Key] = row
	}
	s.current.Store(&SettingsSnapshot{values: values, loadedAt: time.Now().UTC()})
	observability.RecordSettingsReload(ctx, trigger, "success")
	s.logger.DebugContext(ctx, "settings reloaded", "trigger", trigger, "count", len(values))
	return nil
}

func (s *SettingsService) Snapshot() *SettingsSnapshot {
	return s.current.Load()
}

// RateLimit returns the allowed requests per minute per client address.
func (s *SettingsService) RateLimit() int {
	return s.Snapshot().Int(domain.SettingRateLimit, s.defaultRateLimit)
}

func (s *SettingsService) Update(ctx context.Context, actor Actor, key, value string, typ domain.SettingType) (*domain.SystemSetting, error) {
	if actor.Role != domain.RoleSuperAdmin {
		return nil, domain.ErrForbidden
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: setting key is required", domain.ErrInvalidInput)
	}
	if typ == "" {
		typ = domain.SettingTypeString
	}
	if err := validateSetting(key, value, typ); err != nil {
		return nil, err
	}
	setting := &domain.SystemSetting{Key: key, Value: value, Type: typ}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, err
	}
	if err := s.Reload(ctx, "update"); err != nil {
		return nil, err
	}
	return setting, nil
}

func validateSetting(key, value string, typ domain.SettingType) error {
	switch typ {
	case domain.SettingTypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
	case domain.SettingTypeBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidInput, key)
		}
	case domain.SettingTypeString, domain.SettingTypeJSON:
	default:
		return fmt.Errorf("%w: unknown setting type %q", domain.ErrInvalidInput, typ)
	}
	if key == domain.SettingRateLimit {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidInput, key)
		}
	}
	return nil
}
