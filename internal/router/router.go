package router

import (
	"net/http"
	"time"

	"promoledger/internal/app"
	"promoledger/internal/domain"
	"promoledger/internal/handler"
	"promoledger/internal/middleware"
	"promoledger/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup registers every HTTP route. The returned stop func ends the click
// limiter's background sweep.
func Setup(a *app.App) (*gin.Engine, func()) {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(a.Log), middleware.Instrument(a.Metrics))

	clickLimiter := middleware.NewInMemoryRateLimiter(a.Config.RateLimit.ClicksPerMinute, time.Minute)

	affiliateHandler := handler.NewAffiliateHandler(a.Affiliates)
	attributionHandler := handler.NewAttributionHandler(a.Attributions)
	influencerHandler := handler.NewInfluencerHandler(a.Stats)
	sponsorshipHandler := handler.NewSponsorshipHandler(a.Sponsorships)
	rankingHandler := handler.NewRankingHandler(a.Ranking)
	notificationHandler := handler.NewNotificationHandler(a.Notifications)

	authMw := middleware.AuthRequired(a.Verifier)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	r.GET("/ws/dashboard", ws.UpgradeDashboardWS(a.Verifier, a.Hub, a.Metrics, a.Log))

	api := r.Group("/api")
	{
		api.POST("/track/click", middleware.RateLimit(clickLimiter), attributionHandler.TrackClick)

		rankingGroup := api.Group("/ranking")
		{
			rankingGroup.GET("/homepage", rankingHandler.Homepage)
			rankingGroup.GET("/category/:slug", rankingHandler.Category)
			rankingGroup.GET("/search", rankingHandler.Search)
		}

		influencers := api.Group("/influencers")
		influencers.Use(authMw, middleware.RequireRole(domain.RoleInfluencer))
		{
			influencers.GET("/affiliate-links", affiliateHandler.List)
			influencers.POST("/affiliate-links", affiliateHandler.Create)
			influencers.PATCH("/affiliate-links/:id", affiliateHandler.SetActive)
			influencers.GET("/affiliate-links/:id/qr", affiliateHandler.QR)
			influencers.GET("/attributions", attributionHandler.ListMine)
			influencers.GET("/attributions/export", attributionHandler.Export)
			influencers.GET("/stats", influencerHandler.Stats)
			influencers.GET("/metrics", influencerHandler.Metrics)
			influencers.GET("/notifications", notificationHandler.List(domain.AudienceInfluencer))
			influencers.PUT("/notifications/:id/read", notificationHandler.MarkRead(domain.AudienceInfluencer))
		}

		api.POST("/attributions/conversions", authMw, middleware.RequireCapability(domain.CapRecordConversion), attributionHandler.RecordConversion)

		sponsorships := api.Group("/sponsorships")
		sponsorships.Use(authMw)
		{
			sponsorships.POST("", middleware.RequireCapability(domain.CapManageSponsorship), sponsorshipHandler.Create)
			sponsorships.GET("/:id", sponsorshipHandler.Get)
			sponsorships.PATCH("/:id/pause", middleware.RequireCapability(domain.CapManageSponsorship), sponsorshipHandler.Pause)
			sponsorships.PATCH("/:id/resume", middleware.RequireCapability(domain.CapManageSponsorship), sponsorshipHandler.Resume)
			sponsorships.POST("/:id/impressions", middleware.RequireCapability(domain.CapChargeSponsorship), sponsorshipHandler.Impression)
		}

		brand := api.Group("/brand")
		brand.Use(authMw, middleware.RequireCapability(domain.CapManageSponsorship))
		{
			brand.GET("/sponsorships", sponsorshipHandler.ListBrand)
			brand.GET("/notifications", notificationHandler.List(domain.AudienceSeller))
			brand.PUT("/notifications/:id/read", notificationHandler.MarkRead(domain.AudienceSeller))
		}

		api.POST("/me/device-tokens", authMw, notificationHandler.RegisterDevice)

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/sponsorships", sponsorshipHandler.ListAdmin)
			admin.PATCH("/sponsorships/:id/approve", sponsorshipHandler.Approve)
			admin.PATCH("/sponsorships/:id/reject", sponsorshipHandler.Reject)
			admin.POST("/attributions/:id/pay", attributionHandler.MarkPaid)
			admin.POST("/ranking/recompute", rankingHandler.Recompute)
		}
	}
	return r, clickLimiter.Stop
}
