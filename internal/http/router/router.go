package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/health"
	"github.com/sandeepkv93/live-voting-service/internal/http/handler"
	"github.com/sandeepkv93/live-voting-service/internal/http/middleware"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/security"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	VoteHandler       *handler.VoteHandler
	AgendaHandler     *handler.AgendaHandler
	SessionHandler    *handler.SessionHandler
	SettingsHandler   *handler.SettingsHandler
	Realtime          http.Handler
	JWTManager        *security.JWTManager
	CORSOrigins       []string
	APIRateLimitRPM   int
	GlobalRateLimiter GlobalRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	if dep.Realtime != nil {
		r.Handle("/ws", dep.Realtime)
	}

	participantAuth := middleware.ParticipantAuth(dep.JWTManager)
	adminAuth := middleware.AdminAuth(dep.JWTManager)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/token", dep.AuthHandler.UniqueToken)
			r.Post("/shared-link", dep.AuthHandler.SharedLink)
			r.Post("/bind", dep.AuthHandler.BindDevice)
			r.Post("/admin/login", dep.AuthHandler.AdminLogin)
		})
		r.Get("/tokens/{tokenID}", dep.AuthHandler.TokenMetadata)
		r.Get("/sessions/{sessionID}/public", dep.AuthHandler.SessionPublic)
		r.Get("/agendas/{agendaID}/statistics", dep.VoteHandler.Statistics)

		r.Group(func(r chi.Router) {
			r.Use(participantAuth)
			r.Post("/votes", dep.VoteHandler.Cast)
			r.Get("/agendas/{agendaID}/voted", dep.VoteHandler.HasVoted)
			r.Get("/agendas/{agendaID}/my-vote", dep.VoteHandler.MyVote)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuth)
			r.Put("/agendas/{agendaID}/stage", dep.AgendaHandler.Stage)
			r.Post("/agendas/{agendaID}/end", dep.AgendaHandler.End)
			r.Post("/agendas/{agendaID}/publish", dep.AgendaHandler.Publish)

			r.Post("/sessions/{sessionID}/tokens", dep.SessionHandler.IssueTokens)
			r.Post("/sessions/{sessionID}/tokens/revoke", dep.SessionHandler.RevokeTokens)
			r.Post("/sessions/{sessionID}/reset-participants", dep.SessionHandler.ResetParticipants)
			r.Put("/sessions/{sessionID}/settings", dep.SessionHandler.UpdateSettings)
			r.Put("/sessions/{sessionID}/access-code", dep.SessionHandler.RotateAccessCode)
			r.Post("/sessions/{sessionID}/stadium", dep.SessionHandler.Stadium)
			r.Get("/sessions/{sessionID}/audit", dep.SessionHandler.AuditLog)
			r.Delete("/sessions/{sessionID}", dep.SessionHandler.Delete)

			superAdmin := middleware.RequireRole(domain.RoleSuperAdmin)
			r.With(superAdmin).Get("/admin/settings", dep.SettingsHandler.List)
			r.With(superAdmin).Put("/admin/settings/{key}", dep.SettingsHandler.Update)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
