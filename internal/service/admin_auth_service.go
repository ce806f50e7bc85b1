package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/security"
)

type AdminLoginResult struct {
	Credential string    `json:"accessToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
}

type AdminAuthService struct {
	users  repository.UserRepository
	jwt    *security.JWTManager
	ttl    time.Duration
	audit  AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

func NewAdminAuthService(users repository.UserRepository, jwt *security.JWTManager, ttl time.Duration, audit AuditRecorder, logger *slog.Logger) *AdminAuthService {
	if audit == nil {
		audit = NoopAuditRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminAuthService{users: users, jwt: jwt, ttl: ttl, audit: audit, logger: logger, now: time.Now}
}

// Login checks the password and issues an admin credential. Unknown users,
// wrong passwords and inactive accounts are indistinguishable to the caller.
func (s *AdminAuthService) Login(ctx context.Context, username, password string) (_ *AdminLoginResult, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		observability.RecordAuthAttempt(ctx, "admin_password", outcome)
	}()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || !security.CheckPassword(user.PasswordHash, password) {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.jwt.SignAdminToken(user.ID, user.Username, string(user.Role), s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}
	s.audit.Record(ctx, AuditEntry{
		Type: domain.AuditAdminLogin,
		Data: map[string]any{"user_id": user.ID, "username": user.Username},
	})
	return &AdminLoginResult{
		Credential: token,
		ExpiresAt:  s.now().Add(s.ttl).UTC(),
		UserID:     user.ID,
		Username:   user.Username,
		Role:       string(user.Role),
	}, nil
}

// EnsureBootstrapAdmin creates the configured super admin when the username
// is not taken yet. An empty username disables bootstrapping.
func (s *AdminAuthService) EnsureBootstrapAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}
	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	user := &domain.User{
		Username:                  username,
		PasswordHash:              hash,
		Role:                      domain.RoleSuperAdmin,
		Active:                    true,
		MaxSessions:               domain.DefaultMaxSessions,
		MaxAgendasPerSession:      domain.DefaultMaxAgendasPerSession,
		MaxParticipantsPerSession: domain.DefaultMaxParticipantsPerSession,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil
		}
		return err
	}
	s.logger.Info("bootstrap super admin created", "username", username)
	return nil
}
