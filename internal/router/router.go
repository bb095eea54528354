// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/nearby-market/internal/config"
	"github.com/javajoker/nearby-market/internal/handlers"
	"github.com/javajoker/nearby-market/internal/i18n"
	"github.com/javajoker/nearby-market/internal/middleware"
	"github.com/javajoker/nearby-market/internal/utils"
)

func Initialize(svc *Services, cfg *config.Config, limiter *middleware.RateLimiter, log logrus.FieldLogger) *gin.Engine {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(svc.Index)
	vendorHandler := handlers.NewVendorHandler(svc.Vendors, svc.Ledger, svc.Campaigns)
	productHandler := handlers.NewProductHandler(svc.Ledger, svc.Search)
	orderHandler := handlers.NewOrderHandler(svc.Coordinator)
	campaignHandler := handlers.NewCampaignHandler(svc.Campaigns, svc.Search, svc.Coordinator)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.Identity())

	// Health check stays outside the rate limit
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(limiter.Middleware())
	{
		vendors := v1.Group("/vendors")
		{
			vendors.POST("", vendorHandler.CreateVendor)
			vendors.GET("", vendorHandler.ListVendors)
			vendors.GET("/:id", vendorHandler.GetVendor)
			vendors.POST("/:id/products", vendorHandler.CreateProduct)
			vendors.GET("/:id/products", vendorHandler.ListProducts)
			vendors.GET("/:id/campaigns", vendorHandler.ListCampaigns)
		}

		products := v1.Group("/products")
		{
			products.GET("/nearby", productHandler.Nearby)
			products.GET("/:id", productHandler.GetProduct)
			products.GET("/:id/orders", productHandler.ListOrders)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("/confirm", orderHandler.Confirm)
			orders.POST("/:id/release", orderHandler.Release)
		}

		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("/nearby", campaignHandler.Nearby)
			campaigns.POST("/nearby", campaignHandler.NearbyFromBody)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/pledges", campaignHandler.ListPledges)
			campaigns.POST("/:id/back", campaignHandler.Back)
			campaigns.POST("/:id/deliver", campaignHandler.Deliver)
			campaigns.POST("/:id/expire", campaignHandler.Expire)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)
		utils.ErrorResponse(c, http.StatusNotFound, "ROUTE_NOT_FOUND", i18n.T(lang, i18n.KeyRouteNotFound), nil)
	})

	return r
}
