//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/sandeepkv93/live-voting-service/internal/app"
	"github.com/sandeepkv93/live-voting-service/internal/config"
	"github.com/sandeepkv93/live-voting-service/internal/http/handler"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

var infraSet = wire.NewSet(
	provideDB,
	provideRedis,
	provideJWTManager,
	provideLookupMissCache,
	provideAuthAbuseGuard,
	provideAuditSink,
	provideAuditRecorder,
	provideReadiness,
)

var repositorySet = wire.NewSet(
	repository.NewSessionRepository,
	repository.NewEntryTokenRepository,
	repository.NewParticipantRepository,
	repository.NewAgendaRepository,
	repository.NewVoteRepository,
	repository.NewUserRepository,
	repository.NewAuditRepository,
	repository.NewSettingRepository,
)

var serviceSet = wire.NewSet(
	service.NewSessionAuthorizer,
	provideIdentityService,
	service.NewEntryTokenService,
	service.NewAgendaService,
	service.NewVoteService,
	wire.Bind(new(service.StatisticsReader), new(*service.VoteService)),
	provideSessionService,
	provideAdminAuthService,
	provideSettingsService,
	service.NewAuditLogService,
)

var httpSet = wire.NewSet(
	provideRealtime,
	provideBroadcaster,
	handler.NewAuthHandler,
	handler.NewVoteHandler,
	handler.NewAgendaHandler,
	handler.NewSessionHandler,
	handler.NewSettingsHandler,
	provideGlobalRateLimiter,
	provideRouter,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*app.App, func(), error) {
	wire.Build(
		infraSet,
		repositorySet,
		serviceSet,
		httpSet,
		provideScheduler,
		provideApp,
	)
	return nil, nil, nil
}
