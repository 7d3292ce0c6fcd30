package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/authz"
	"github.com/ArowuTest/calmcoins-backend/internal/catalog"
	"github.com/ArowuTest/calmcoins-backend/internal/config"
	"github.com/ArowuTest/calmcoins-backend/internal/handlers"
	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

// HandlerDependencies holds everything the router wires together
type HandlerDependencies struct {
	GameHandler         *handlers.GameHandler
	BadgeHandler        *handlers.BadgeHandler
	WalletHandler       *handlers.WalletHandler
	NotificationHandler *handlers.NotificationHandler
	UserHandler         *handlers.UserHandler

	Catalog *catalog.Catalog
	Checker authz.Checker
	// Progress lets game routes resolve the role from the caller's stored record
	Progress repositories.ProgressRepository
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *middleware.UserRateLimiter
	// Socket serves the realtime endpoint; nil disables it
	Socket gin.HandlerFunc
	// HealthCheck reports storage reachability; nil always reports ok
	HealthCheck func(ctx context.Context) error
	Logger      *slog.Logger
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Create router
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedHosts))

	if deps.Socket != nil {
		router.GET("/socket.io/*any", deps.Socket)
		router.POST("/socket.io/*any", deps.Socket)
	}

	// Public routes
	public := router.Group("/api/v1")
	{
		// Health check
		public.GET("/health", func(c *gin.Context) {
			if deps.HealthCheck != nil {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				defer cancel()
				if err := deps.HealthCheck(ctx); err != nil {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
					return
				}
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	limit := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limit = middleware.RateLimitMiddleware(deps.RateLimiter)
	}
	authorize := func(action string, resolve middleware.RoleResolver) gin.HandlerFunc {
		return middleware.Authorize(deps.Checker, action, resolve)
	}
	bodyGameType := middleware.GameTypeFromBody(deps.Catalog)
	gameRole := middleware.GameRole(deps.Catalog, deps.Progress)
	badgeRole := middleware.BadgeRole(deps.Catalog)

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(cfg.JWT.Secret))
	{
		protected.GET("/me", deps.UserHandler.GetMe)

		// Game routes
		game := protected.Group("/game")
		{
			game.POST("/complete", limit, authorize(authz.ActionCompleteGame, bodyGameType), deps.GameHandler.CompleteGame)
			game.GET("/progress/:gameId", authorize(authz.ActionViewProgress, gameRole), deps.GameHandler.GetProgress)
			game.POST("/unlock-replay/:gameId", limit, authorize(authz.ActionUnlockReplay, gameRole), deps.GameHandler.UnlockReplay)
		}

		// Badge routes
		badge := protected.Group("/badge")
		{
			badge.GET("/:badgeKey", authorize(authz.ActionViewBadge, badgeRole), deps.BadgeHandler.GetBadgeStatus)
			badge.POST("/:badgeKey/collect", limit, authorize(authz.ActionCollectBadge, badgeRole), deps.BadgeHandler.CollectBadge)
			badge.POST("/:badgeKey/acknowledge", authorize(authz.ActionAcknowledge, badgeRole), deps.BadgeHandler.AcknowledgeBadge)
		}
		protected.GET("/badges", authorize(authz.ActionViewBadge, nil), deps.BadgeHandler.ListBadges)

		// Wallet routes
		wallet := protected.Group("/wallet")
		{
			wallet.GET("", authorize(authz.ActionViewOwnWallet, nil), deps.WalletHandler.GetWallet)
			wallet.GET("/transactions", authorize(authz.ActionViewOwnWallet, nil), deps.WalletHandler.GetTransactions)
		}

		// Notification routes
		notifications := protected.Group("/notifications")
		{
			notifications.GET("", deps.NotificationHandler.ListNotifications)
			notifications.PATCH("/:id/read", deps.NotificationHandler.MarkRead)
		}
	}

	return router
}
