package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/talentsift/assesshub-backend/internal/config"
	"github.com/talentsift/assesshub-backend/internal/handler"
	"github.com/talentsift/assesshub-backend/internal/middleware"
	"github.com/talentsift/assesshub-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Test    *handler.TestHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Candidate Group (JWT) ──────────────────────────────────────
	// Token issuance lives in the identity service; this engine only
	// validates.
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(middleware.RequireCandidateJWT(cfg.JWTSecret))
	{
		candidateAPI.GET("/attempts", handlers.Session.ListAttempts)

		candidateAPI.POST("/tests/:test_id/session", handlers.Session.StartSession)
		candidateAPI.GET("/tests/:test_id/session", handlers.Session.GetSnapshot)
		candidateAPI.DELETE("/tests/:test_id/session", handlers.Session.Abandon)
		candidateAPI.POST("/tests/:test_id/session/capabilities", handlers.Session.ResolveCapabilities)
		candidateAPI.POST("/tests/:test_id/session/submit", handlers.Session.Submit)
		candidateAPI.POST("/tests/:test_id/session/retry", handlers.Session.RetryCompletion)
	}

	// ─── 2. Internal Group (Shared Token) ──────────────────────────────
	// Maintenance surface for the authoring pipeline.
	internalAPI := router.Group("/internal/v1")
	internalAPI.Use(middleware.RequireInternalToken(cfg.InternalAPIToken))
	{
		internalAPI.POST("/tests/:test_id/refresh-cache", handlers.Test.RefreshCache)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(cfg.JWTSecret))
	{
		ws.GET("/candidate/tests/:test_id/stream", handlers.WS.SessionStream)
	}

	return router
}
