package handlers

import (
	"log"
	"net/http"

	config "agri-price-api/configs"
	"agri-price-api/pkg/models"
	"agri-price-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies はルーターが使うサービス群です。
type Dependencies struct {
	Dataset    *services.DatasetContext
	Resolver   *services.FilterResolver
	Engine     *services.QueryEngine
	Pipeline   *services.QueryPipeline
	Cache      *services.QueryCache
	Monitoring *services.MonitoringService
}

// APIKeyAuth はX-API-KEYヘッダを検証するミドルウェアです。
// apiKeyが未設定の場合は認証を行いません。
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != apiKey {
			log.Printf("❌ [認証] 無効なAPI Key: %s %s", c.Request.Method, c.Request.URL.Path)
			abortWithError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Unauthorized", nil)
			return
		}
		c.Next()
	}
}

// SetupRouter はGinルーターを構築します。cmd/serverとapi/で共通です。
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.Default()

	queryHandler := NewQueryHandler(deps.Pipeline)
	dimensionHandler := NewDimensionHandler(deps.Dataset, deps.Resolver, deps.Engine)
	adminHandler := NewAdminHandler(cfg, deps.Dataset, deps.Cache)
	monitoringHandler := NewMonitoringHandler(deps.Monitoring)

	// ミドルウェアの登録
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("X-API-KEY", services.RequestIDHeader)
	corsConfig.AddExposeHeaders(services.RequestIDHeader, "Content-Disposition")
	r.Use(cors.New(corsConfig))
	r.Use(services.RequestIDMiddleware())
	r.Use(deps.Monitoring.LoggingMiddleware())

	// ヘルスチェックエンドポイント
	r.GET("/health", adminHandler.HealthCheck)

	v1 := r.Group("/api/v1")
	v1.Use(APIKeyAuth(cfg.APIKey))
	{
		// 価格問い合わせAPI
		query := v1.Group("")
		query.Use(MaintenanceGuard())
		{
			query.POST("/query", queryHandler.Query)
			query.POST("/query/export", queryHandler.Export)
			query.GET("/dimensions", dimensionHandler.GetDimensions)
			query.GET("/markets/top", dimensionHandler.GetTopMarkets)
		}

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
			admin.POST("/reload", adminHandler.Reload)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}
