package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/live-voting-service/internal/app"
	"github.com/sandeepkv93/live-voting-service/internal/config"
	"github.com/sandeepkv93/live-voting-service/internal/health"
	"github.com/sandeepkv93/live-voting-service/internal/http/handler"
	"github.com/sandeepkv93/live-voting-service/internal/http/middleware"
	"github.com/sandeepkv93/live-voting-service/internal/http/router"
	"github.com/sandeepkv93/live-voting-service/internal/jobs"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/realtime"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/security"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

const auditBuffer = 1024

func provideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.DatabaseDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, func() { _ = sqlDB.Close() }, nil
}

// provideRedis returns a nil client when REDIS_ADDR is unset; every consumer
// then falls back to its in-process variant.
func provideRedis(cfg *config.Config) (redis.UniversalClient, func()) {
	if !cfg.RedisEnabled() {
		return nil, func() {}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTParticipantSecret, cfg.JWTAdminSecret)
}

func provideLookupMissCache(cfg *config.Config, client redis.UniversalClient) service.LookupMissCache {
	if client == nil {
		return service.NewInMemoryLookupMissCache()
	}
	return service.NewRedisLookupMissCache(client, cfg.RedisPrefix)
}

func provideAuthAbuseGuard(cfg *config.Config, client redis.UniversalClient) service.AuthAbuseGuard {
	if client == nil {
		return service.NewInMemoryAuthAbuseGuard(service.DefaultAuthAbusePolicy())
	}
	return service.NewRedisAuthAbuseGuard(client, cfg.RedisPrefix, service.DefaultAuthAbusePolicy())
}

// provideAuditSink is closed by the app after the HTTP server drains so queued
// events still reach the database.
func provideAuditSink(repo repository.AuditRepository, logger *slog.Logger) *service.AsyncAuditSink {
	return service.NewAsyncAuditSink(repo, logger, auditBuffer)
}

func provideAuditRecorder(sink *service.AsyncAuditSink) service.AuditRecorder {
	return sink
}

func provideIdentityService(
	cfg *config.Config,
	sessions repository.SessionRepository,
	tokens repository.EntryTokenRepository,
	participants repository.ParticipantRepository,
	users repository.UserRepository,
	jwt *security.JWTManager,
	misses service.LookupMissCache,
	audit service.AuditRecorder,
	logger *slog.Logger,
) *service.IdentityService {
	return service.NewIdentityService(sessions, tokens, participants, users, jwt, cfg.ParticipantTokenTTL, misses, audit, logger)
}

func provideSessionService(
	cfg *config.Config,
	sessions repository.SessionRepository,
	participants repository.ParticipantRepository,
	authorizer *service.SessionAuthorizer,
	audit service.AuditRecorder,
) *service.SessionService {
	return service.NewSessionService(sessions, participants, authorizer, audit, cfg.AccessCodeTTL)
}

// provideAdminAuthService also creates the bootstrap super admin when one is
// configured.
func provideAdminAuthService(
	ctx context.Context,
	cfg *config.Config,
	users repository.UserRepository,
	jwt *security.JWTManager,
	audit service.AuditRecorder,
	logger *slog.Logger,
) (*service.AdminAuthService, error) {
	svc := service.NewAdminAuthService(users, jwt, cfg.AdminTokenTTL, audit, logger)
	if cfg.BootstrapAdminUsername != "" {
		if err := svc.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func provideSettingsService(ctx context.Context, cfg *config.Config, repo repository.SettingRepository, logger *slog.Logger) (*service.SettingsService, error) {
	svc := service.NewSettingsService(repo, cfg.DefaultRateLimitRPM, logger)
	if err := svc.EnsureDefaults(ctx); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return svc, nil
}

// Realtime groups the coordinator with the background pieces its backends
// need: the Redis bus subscriber and the in-memory reconnect sweeper.
type Realtime struct {
	Coordinator *realtime.Coordinator
	Workers     []app.Worker
	Sweeper     jobs.Sweeper
}

func provideRealtime(
	cfg *config.Config,
	logger *slog.Logger,
	client redis.UniversalClient,
	jwt *security.JWTManager,
	agendas *service.AgendaService,
	votes *service.VoteService,
	tokens *service.EntryTokenService,
	sessions *service.SessionService,
) *Realtime {
	hub := realtime.NewHub(logger)
	deps := realtime.CoordinatorDeps{
		Hub:         hub,
		StatsWindow: cfg.StatsThrottleWindow,
		Auth:        realtime.NewAuthenticator(jwt),
		Agendas:     agendas,
		Votes:       votes,
		Tokens:      tokens,
		Sessions:    sessions,
		Logger:      logger,
	}
	rt := &Realtime{}
	if client != nil {
		bus := realtime.NewRedisBus(client, cfg.RedisPrefix, hub, logger)
		deps.Bus = bus
		deps.StatsBuffer = realtime.NewRedisStatsBuffer(client, cfg.RedisPrefix)
		deps.StatsBackend = "redis"
		deps.Reconnect = realtime.NewRedisReconnectStore(client, cfg.RedisPrefix)
		rt.Workers = append(rt.Workers, func(ctx context.Context) error { return bus.Run(ctx, nil) })
	} else {
		store := realtime.NewInMemoryReconnectStore()
		deps.Reconnect = store
		rt.Sweeper = store
	}
	rt.Coordinator = realtime.NewCoordinator(deps, realtime.Options{
		PingInterval:   cfg.WSPingInterval,
		PongWait:       cfg.WSPongWait,
		SendBuffer:     cfg.WSSendBuffer,
		ReconnectTTL:   cfg.ReconnectTTL,
		AllowedOrigins: cfg.CORSOrigins,
	})
	return rt
}

func provideBroadcaster(rt *Realtime) handler.Broadcaster {
	return rt.Coordinator
}

// provideGlobalRateLimiter keys authenticated participants by subject and
// everyone else by client address. The per-minute limit follows the
// RATE_LIMIT setting.
func provideGlobalRateLimiter(cfg *config.Config, client redis.UniversalClient, jwt *security.JWTManager, settings *service.SettingsService) router.GlobalRateLimiterFunc {
	var limiter middleware.Limiter = middleware.NewLocalFixedWindowLimiter()
	if client != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(client, cfg.RedisPrefix)
	}
	rl := middleware.NewDynamicRateLimiter(
		limiter,
		middleware.PerMinute(settings.RateLimit),
		middleware.FailureMode(cfg.RateLimitFailMode),
		"api",
		middleware.ParticipantOrIPKeyFunc(jwt),
	)
	return rl.Middleware()
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.RedisChecker(client))
	}
	return health.NewProbeRunner(2*time.Second, time.Second, checkers...)
}

// StopScheduler halts the cron jobs; the app calls it before draining HTTP.
type StopScheduler func()

func provideScheduler(cfg *config.Config, logger *slog.Logger, settings *service.SettingsService, rt *Realtime) (StopScheduler, error) {
	s := jobs.NewScheduler(logger)
	if err := s.ScheduleSettingsReload(settings, cfg.SettingsReloadInterval); err != nil {
		return nil, err
	}
	if err := s.ScheduleSweep("reconnect", rt.Sweeper, time.Minute); err != nil {
		return nil, err
	}
	s.Start()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	}, nil
}

func provideRouter(
	cfg *config.Config,
	auth *handler.AuthHandler,
	votes *handler.VoteHandler,
	agendas *handler.AgendaHandler,
	sessions *handler.SessionHandler,
	settings *handler.SettingsHandler,
	rt *Realtime,
	jwt *security.JWTManager,
	limiter router.GlobalRateLimiterFunc,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:       auth,
		VoteHandler:       votes,
		AgendaHandler:     agendas,
		SessionHandler:    sessions,
		SettingsHandler:   settings,
		Realtime:          rt.Coordinator,
		JWTManager:        jwt,
		CORSOrigins:       cfg.CORSOrigins,
		APIRateLimitRPM:   cfg.DefaultRateLimitRPM,
		GlobalRateLimiter: limiter,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELTracingEnabled,
	})
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	rt *Realtime,
	sink *service.AsyncAuditSink,
	readiness *health.ProbeRunner,
	stopScheduler StopScheduler,
) *app.App {
	closers := []func(){rt.Coordinator.Close, sink.Close}
	return app.New(cfg, logger, server, runtime, rt.Workers, closers, readiness, stopScheduler)
}
