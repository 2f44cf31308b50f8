// Package http exposes the administrative surface: ban management, account
// maintenance, and the security event log, behind JWT auth. The surface is
// deliberately thin; all policy lives in the services it calls.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/interfaces"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
	"github.com/KynuxDev/DiscordLite/internal/domain/service"
)

type Router struct {
	logger     *zap.Logger
	cfg        config.AdminConfig
	store      repository.Store
	bans       *service.BanEnforcer
	links      *service.LinkCoordinator
	challenges *service.ChallengeCoordinator
	risk       *service.RiskTracker
	audit      *service.AuditService
	sessions   interfaces.SessionEventSource
}

func NewRouter(
	logger *zap.Logger,
	cfg config.AdminConfig,
	store repository.Store,
	bans *service.BanEnforcer,
	links *service.LinkCoordinator,
	challenges *service.ChallengeCoordinator,
	risk *service.RiskTracker,
	audit *service.AuditService,
	sessions interfaces.SessionEventSource,
) *Router {
	return &Router{
		logger:     logger,
		cfg:        cfg,
		store:      store,
		bans:       bans,
		links:      links,
		challenges: challenges,
		risk:       risk,
		audit:      audit,
		sessions:   sessions,
	}
}

// Engine builds the gin engine with all routes attached.
func (r *Router) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(r.logger))

	engine.GET("/healthz", r.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := engine.Group("/admin", requireAdmin(r.cfg.JWTSecret))
	{
		admin.GET("/bans", r.listBans)
		admin.POST("/bans", r.createBan)
		admin.DELETE("/bans/:origin", r.deleteBan)

		admin.GET("/whitelist/:origin", r.checkWhitelist)
		admin.POST("/whitelist/:origin", r.addWhitelist)
		admin.DELETE("/whitelist/:origin", r.removeWhitelist)

		admin.POST("/accounts/:id/unlink", r.unlinkAccount)
		admin.POST("/accounts/:id/reset", r.resetAccount)
		admin.POST("/accounts/:id/second-factor", r.setSecondFactor)

		admin.GET("/risk/:origin", r.riskStatus)
		admin.GET("/events", r.listEvents)
	}

	// Inbound callbacks from the game-server and messaging-platform adapters.
	// Same token scheme as /admin; adapters hold service tokens.
	hooks := engine.Group("/hooks", requireAdmin(r.cfg.JWTSecret))
	{
		hooks.POST("/sessions/start", r.sessionStart)
		hooks.POST("/sessions/quit", r.sessionQuit)
		hooks.POST("/links/start", r.startLink)
		hooks.POST("/links/resolve", r.resolveLink)
		hooks.POST("/challenges/:id/approve", r.approveChallenge)
		hooks.POST("/challenges/:id/deny", r.denyChallenge)
	}
	return engine
}
