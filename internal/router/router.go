package router

import (
	"net/http"
	"time"

	"pitchside/config"
	"pitchside/internal/domain"
	"pitchside/internal/handler"
	"pitchside/internal/middleware"
	"pitchside/internal/observability"
	"pitchside/internal/reconcile"
	"pitchside/internal/repository"
	"pitchside/internal/service"
	"pitchside/internal/sweep"
	"pitchside/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Setup wires the engine and returns the router plus the sweeper for main to
// run. All collaborators are injected here; nothing holds ambient state.
func Setup(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*gin.Engine, *sweep.Sweeper) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	paymentRepo := repository.NewPaymentRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	opsFeed := ws.NewHub()
	alertSvc := service.NewAlertService(log, metrics, opsFeed, cfg.Gateway.SigAlertThreshold, cfg.Gateway.SigAlertWindow)
	checkoutSvc := service.NewCheckoutService(paymentRepo, bookingRepo)

	resolver := reconcile.NewResolver(paymentRepo)
	engine := reconcile.NewEngine(paymentRepo, bookingRepo, alertSvc, cfg.Gateway.CommissionRateBps)
	sweeper := sweep.New(paymentRepo, bookingRepo, metrics, log, cfg.Sweep.Interval, cfg.Sweep.BatchSize)

	webhookHandler := handler.NewGatewayWebhookHandler(resolver, engine, eventRepo, alertSvc, metrics, &cfg.Gateway, log)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc)
	payoutHandler := handler.NewPayoutHandler(paymentRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	limiter := middleware.NewInMemoryRateLimiter(100, 60*time.Second)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/gateway", webhookHandler.Handle)
			webhooks.OPTIONS("/gateway", func(c *gin.Context) {
				c.Header("Access-Control-Allow-Origin", "*")
				c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type, X-Gateway-Signature")
				c.Status(http.StatusNoContent)
			})
		}

		authed := api.Group("")
		authed.Use(middleware.RateLimit(limiter), authMw)
		{
			authed.POST("/bookings/:id/checkout", middleware.RequireRole(domain.RoleClubManager), checkoutHandler.Initiate)
			authed.GET("/owners/me/payouts", middleware.RequireRole(domain.RoleStadiumOwner), payoutHandler.ListMine)
		}

		api.GET("/ops/feed", ws.UpgradeOpsFeed(&cfg.JWT, opsFeed))
	}

	return r, sweeper
}
